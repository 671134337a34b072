package wake_protocol

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"

	"github.com/holpsBot/proof-of-wake/ledger"
	"github.com/holpsBot/proof-of-wake/program"
)

const (
	EventSolTransferSent     = "SOLTransferSent"
	EventSolTransferReceived = "SOLTransferReceived"
	EventAirdrop             = "Airdrop"
)

// GenericEvent represents a basic transaction event.
type GenericEvent struct {
	Signature solana.Signature `json:"signature"`
	Slot      uint64           `json:"slot"`
	Timestamp time.Time        `json:"timestamp"`
	Type      string           `json:"type"`
	Amount    uint64           `json:"amount,omitempty"`
	Sender    solana.PublicKey `json:"sender,omitempty"`
	Recipient solana.PublicKey `json:"recipient,omitempty"`
	Streak    uint16           `json:"streak,omitempty"`
}

// HistoryResult holds the categorized history, newest first.
type HistoryResult struct {
	SolHistory  []GenericEvent `json:"solHistory"`
	WakeHistory []GenericEvent `json:"wakeHistory"`
}

// historyFetchConcurrency bounds parallel transaction lookups
const historyFetchConcurrency = 10

// GetHistory fetches and parses the transaction history for a given public key.
func (c *Client) GetHistory(ctx context.Context, publicKey solana.PublicKey) (*HistoryResult, error) {
	if err := initializeIDL(); err != nil {
		return nil, fmt.Errorf("failed to initialize IDL: %w", err)
	}

	result := &HistoryResult{
		SolHistory:  make([]GenericEvent, 0),
		WakeHistory: make([]GenericEvent, 0),
	}

	signatures, err := c.Ledger.GetSignaturesForAddress(ctx, publicKey, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction signatures: %w", err)
	}
	if len(signatures) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(historyFetchConcurrency)
	for _, sigInfo := range signatures {
		if sigInfo.Err != nil {
			// Failed transactions moved nothing
			continue
		}
		sigInfo := sigInfo
		g.Go(func() error {
			rec, err := c.Ledger.GetTransaction(gctx, sigInfo.Signature)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// Log error but continue processing other transactions
				c.logger.Warn(
					fmt.Sprintf("failed to fetch transaction %s: %s", sigInfo.Signature, err),
					"component", "client",
				)
				return nil
			}
			parseTransactionForHistory(rec, publicKey, result, &mu)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortEvents(result.SolHistory)
	sortEvents(result.WakeHistory)
	return result, nil
}

func sortEvents(events []GenericEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Slot > events[j].Slot
	})
}

// parseTransactionForHistory parses transaction data to build history
func parseTransactionForHistory(rec *ledger.TransactionRecord, self solana.PublicKey, result *HistoryResult, mu *sync.Mutex) {
	if rec == nil || rec.Failed {
		return
	}
	timestamp := time.Unix(rec.BlockTime, 0).UTC()
	parseWakeEvents(rec, self, timestamp, result, mu)
	parseSolTransfers(rec, self, timestamp, result, mu)
}

// parseWakeEvents extracts protocol events from the program data logs
func parseWakeEvents(rec *ledger.TransactionRecord, self solana.PublicKey, timestamp time.Time, result *HistoryResult, mu *sync.Mutex) {
	for _, log := range rec.Logs {
		eventDataB64, ok := strings.CutPrefix(log, "Program data: ")
		if !ok {
			continue
		}
		eventData, err := base64.StdEncoding.DecodeString(strings.TrimSpace(eventDataB64))
		if err != nil || len(eventData) < 8 {
			continue
		}
		var disc [8]byte
		copy(disc[:], eventData[:8])
		eventName, found := eventNameMap[disc]
		if !found {
			continue
		}
		decoded, err := program.DecodeEvent(eventName, eventData)
		if err != nil {
			continue
		}
		ev := GenericEvent{
			Signature: rec.Signature,
			Slot:      rec.Slot,
			Timestamp: timestamp,
			Type:      eventName,
		}
		switch e := decoded.(type) {
		case *program.TreasuryInitialized:
			if !e.Authority.Equals(self) {
				continue
			}
			ev.Sender = e.Authority
		case *program.TreasuryFunded:
			if !e.Funder.Equals(self) {
				continue
			}
			ev.Amount = e.Amount
			ev.Sender = e.Funder
		case *program.ChallengeStarted:
			if !e.Authority.Equals(self) {
				continue
			}
			ev.Amount = e.StakeAmount
			ev.Sender = e.Authority
			ev.Recipient = e.Challenge
		case *program.DayCompleted:
			if !e.Authority.Equals(self) {
				continue
			}
			ev.Streak = e.Streak
			ev.Sender = e.Authority
		case *program.ChallengeMatured:
			if !e.Authority.Equals(self) {
				continue
			}
			ev.Amount = e.StakeReturned + e.Bonus
			ev.Recipient = e.Authority
		case *program.ChallengeSlashed:
			if !e.Authority.Equals(self) && !e.Caller.Equals(self) {
				continue
			}
			ev.Amount = e.Amount
			ev.Sender = e.Authority
			ev.Recipient = e.Caller
			ev.Streak = e.Streak
		default:
			continue
		}
		mu.Lock()
		result.WakeHistory = append(result.WakeHistory, ev)
		mu.Unlock()
	}
}

// parseSolTransfers picks System Program transfers out of the message
func parseSolTransfers(rec *ledger.TransactionRecord, self solana.PublicKey, timestamp time.Time, result *HistoryResult, mu *sync.Mutex) {
	if len(rec.Message) == 0 {
		return
	}
	msg, err := rec.DecodeMessage()
	if err != nil {
		return
	}
	for _, instr := range msg.Instructions {
		programIdx := instr.ProgramIDIndex
		if int(programIdx) >= len(msg.AccountKeys) {
			continue
		}
		if !msg.AccountKeys[programIdx].Equals(solana.SystemProgramID) {
			continue
		}
		decoder := bin.NewBorshDecoder(instr.Data)
		var instrType uint32
		if err := decoder.Decode(&instrType); err != nil {
			continue
		}
		// 2 = Transfer instruction
		if instrType != 2 {
			continue
		}
		var amount uint64
		if err := decoder.Decode(&amount); err != nil {
			continue
		}
		if len(instr.Accounts) < 2 {
			continue
		}
		fromIdx, toIdx := instr.Accounts[0], instr.Accounts[1]
		if int(fromIdx) >= len(msg.AccountKeys) || int(toIdx) >= len(msg.AccountKeys) {
			continue
		}
		from := msg.AccountKeys[fromIdx]
		to := msg.AccountKeys[toIdx]
		if !from.Equals(self) && !to.Equals(self) {
			continue
		}

		eventType := EventSolTransferSent
		switch {
		case from.Equals(ledger.FaucetID):
			eventType = EventAirdrop
		case to.Equals(self):
			eventType = EventSolTransferReceived
		}
		mu.Lock()
		result.SolHistory = append(result.SolHistory, GenericEvent{
			Signature: rec.Signature,
			Slot:      rec.Slot,
			Timestamp: timestamp,
			Type:      eventType,
			Amount:    amount,
			Sender:    from,
			Recipient: to,
		})
		mu.Unlock()
	}
}

package wake_protocol

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/holpsBot/proof-of-wake/program"
)

//go:embed idl.json
var idlJSON []byte

type IDL struct {
	Version      string              `json:"version"`
	Name         string              `json:"name"`
	Address      string              `json:"address"`
	Instructions []IDLInstruction    `json:"instructions"`
	Accounts     []IDLTypeDefinition `json:"accounts"`
	Events       []IDLEvent          `json:"events"`
	Types        []IDLTypeDefinition `json:"types"`
	Errors       []IDLError          `json:"errors"`
}

type IDLInstruction struct {
	Name          string       `json:"name"`
	Discriminator []byte       `json:"discriminator"`
	Args          []IDLField   `json:"args"`
	Accounts      []IDLAccount `json:"accounts"`
}

type IDLEvent struct {
	Name          string     `json:"name"`
	Discriminator []byte     `json:"discriminator"`
	Fields        []IDLField `json:"fields"`
}

type IDLField struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

type IDLAccount struct {
	Name     string `json:"name"`
	IsMut    bool   `json:"isMut"`
	IsSigner bool   `json:"isSigner"`
}

type IDLTypeDefinition struct {
	Name          string `json:"name"`
	Discriminator []byte `json:"discriminator"`
	Type          struct {
		Kind   string     `json:"kind"`
		Fields []IDLField `json:"fields"`
	} `json:"type"`
}

type IDLError struct {
	Code uint32 `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

// ParseIDL parses an Anchor IDL. Discriminators the IDL leaves out are
// derived from the item names.
func ParseIDL(idlBytes []byte) (*IDL, error) {
	var idl IDL
	err := json.Unmarshal(idlBytes, &idl)
	if err != nil {
		return nil, fmt.Errorf("error unmarshalling IDL JSON: %w", err)
	}
	for i := range idl.Instructions {
		if len(idl.Instructions[i].Discriminator) == 0 {
			disc := program.InstructionDiscriminator(idl.Instructions[i].Name)
			idl.Instructions[i].Discriminator = disc[:]
		}
	}
	for i := range idl.Accounts {
		if len(idl.Accounts[i].Discriminator) == 0 {
			disc := program.AccountDiscriminator(idl.Accounts[i].Name)
			idl.Accounts[i].Discriminator = disc[:]
		}
	}
	for i := range idl.Events {
		if len(idl.Events[i].Discriminator) == 0 {
			disc := program.EventDiscriminator(idl.Events[i].Name)
			idl.Events[i].Discriminator = disc[:]
		}
	}
	return &idl, nil
}

var (
	initIdlOnce sync.Once
	initIdlErr  error
	idlData     *IDL
	// Map of event discriminators to event names
	eventNameMap map[[8]byte]string
	errorsByCode map[uint32]IDLError
)

// initializeIDL loads and parses the embedded IDL once
func initializeIDL() error {
	initIdlOnce.Do(func() {
		idlData, initIdlErr = ParseIDL(idlJSON)
		if initIdlErr != nil {
			return
		}
		eventNameMap = make(map[[8]byte]string)
		for _, event := range idlData.Events {
			var disc [8]byte
			copy(disc[:], event.Discriminator)
			eventNameMap[disc] = event.Name
		}
		errorsByCode = make(map[uint32]IDLError)
		for _, e := range idlData.Errors {
			errorsByCode[e.Code] = e
		}
	})
	return initIdlErr
}

// GetIDL returns the program's embedded IDL.
func GetIDL() (*IDL, error) {
	if err := initializeIDL(); err != nil {
		return nil, fmt.Errorf("failed to initialize IDL: %w", err)
	}
	return idlData, nil
}

// LookupError returns the IDL entry for a custom error code.
func LookupError(code uint32) (IDLError, bool) {
	if err := initializeIDL(); err != nil {
		return IDLError{}, false
	}
	e, ok := errorsByCode[code]
	return e, ok
}

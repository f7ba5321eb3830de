package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type ArtifactNotFoundError struct {
	Path string
	Err  error
}

func (e *ArtifactNotFoundError) Error() string {
	if e == nil {
		return "contract artifact not found"
	}
	return "cannot find locally built contract artifact at " + e.Path + "; please build the contract first"
}

func (e *ArtifactNotFoundError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type AbiLookupError struct {
	Kind string
	Name string
}

func (e *AbiLookupError) Error() string {
	if e == nil {
		return "abi entry not found"
	}
	if e.Name == "" {
		return "no " + e.Kind + " found in ABI"
	}
	return fmt.Sprintf("%s %q not found in ABI", e.Kind, e.Name)
}

// Artifact is a compiled contract: its ABI and creation bytecode.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte

	hasConstructor bool
}

func ParseArtifact(name string, abiJSON, bin []byte) (*Artifact, error) {
	parsed, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parse %s ABI: %w", name, err)
	}
	var entries []struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(abiJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse %s ABI: %w", name, err)
	}
	art := &Artifact{Name: name, ABI: parsed}
	for _, e := range entries {
		if e.Type == "constructor" {
			art.hasConstructor = true
			break
		}
	}
	code := strings.TrimSpace(string(bin))
	if code != "" {
		if !strings.HasPrefix(code, "0x") && !strings.HasPrefix(code, "0X") {
			code = "0x" + code
		}
		if art.Bytecode, err = hexutil.Decode(code); err != nil {
			return nil, fmt.Errorf("decode %s bytecode: %w", name, err)
		}
	}
	return art, nil
}

func (a *Artifact) Constructor() (abi.Method, Kind, error) {
	if !a.hasConstructor {
		return abi.Method{}, 0, &AbiLookupError{Kind: "constructor"}
	}
	return a.ABI.Constructor, KindOf(a.ABI.Constructor), nil
}

func (a *Artifact) Function(name string) (abi.Method, Kind, error) {
	m, ok := a.ABI.Methods[name]
	if !ok {
		return abi.Method{}, 0, &AbiLookupError{Kind: "function", Name: name}
	}
	return m, KindOf(m), nil
}

func (a *Artifact) Event(name string) (abi.Event, error) {
	ev, ok := a.ABI.Events[name]
	if !ok {
		return abi.Event{}, &AbiLookupError{Kind: "event", Name: name}
	}
	return ev, nil
}

// Kind is the mutability class of a constructor or function.
type Kind int

const (
	KindNonPayable Kind = iota
	KindPayable
	KindView
)

// KindOf treats pure functions like view functions.
func KindOf(m abi.Method) Kind {
	switch {
	case m.IsConstant():
		return KindView
	case m.IsPayable():
		return KindPayable
	default:
		return KindNonPayable
	}
}

func (k Kind) String() string {
	switch k {
	case KindPayable:
		return "payable"
	case KindView:
		return "view"
	default:
		return "nonpayable"
	}
}

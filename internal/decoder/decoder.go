package decoder

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type DecodedLog struct {
	Event       string                 `json:"event"`
	Address     string                 `json:"address"`
	BlockNumber uint64                 `json:"block_number"`
	TxHash      string                 `json:"tx_hash"`
	LogIndex    uint                   `json:"log_index"`
	Args        map[string]interface{} `json:"args"`
	Topics      []string               `json:"topics"`
	Data        string                 `json:"data"`
}

// DecodeLogs decodes logs emitted for event. Logs with a different topic0 are
// skipped.
func DecodeLogs(event abi.Event, logs []types.Log) ([]DecodedLog, error) {
	decoded := make([]DecodedLog, 0, len(logs))
	for _, l := range logs {
		if !event.Anonymous && (len(l.Topics) == 0 || l.Topics[0] != event.ID) {
			continue
		}
		d, err := DecodeLog(event, l)
		if err != nil {
			return decoded, err
		}
		decoded = append(decoded, d)
	}
	return decoded, nil
}

func DecodeLog(event abi.Event, l types.Log) (DecodedLog, error) {
	args := map[string]interface{}{}
	if len(l.Data) > 0 {
		if err := event.Inputs.UnpackIntoMap(args, l.Data); err != nil {
			return DecodedLog{}, fmt.Errorf("unpack %s data: %w", event.Name, err)
		}
	}
	topics := l.Topics
	if !event.Anonymous {
		if len(topics) == 0 {
			return DecodedLog{}, errors.New("log has no topics")
		}
		topics = topics[1:]
	}
	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopicsIntoMap(args, indexed, topics); err != nil {
		return DecodedLog{}, fmt.Errorf("parse %s topics: %w", event.Name, err)
	}
	return DecodedLog{
		Event:       event.Name,
		Address:     l.Address.Hex(),
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash.Hex(),
		LogIndex:    l.Index,
		Args:        normalizeMap(args),
		Topics:      topicsToHex(l.Topics),
		Data:        "0x" + hex.EncodeToString(l.Data),
	}, nil
}

// DecodeOutputs unpacks the return data of method into JSON-friendly values.
func DecodeOutputs(method abi.Method, data []byte) ([]interface{}, error) {
	values, err := method.Outputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s outputs: %w", method.Name, err)
	}
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		out = append(out, NormalizeValue(v))
	}
	return out, nil
}

func topicsToHex(topics []common.Hash) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		out = append(out, t.Hex())
	}
	return out
}

func normalizeMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = NormalizeValue(v)
	}
	return out
}

// NormalizeValue converts ABI-decoded Go values to strings, numbers and
// slices that encode to readable JSON.
func NormalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case common.Address:
		return t.Hex()
	case *common.Address:
		if t == nil {
			return ""
		}
		return t.Hex()
	case common.Hash:
		return t.Hex()
	case *big.Int:
		if t == nil {
			return "0"
		}
		return t.String()
	case []byte:
		return "0x" + hex.EncodeToString(t)
	case [32]byte:
		return "0x" + hex.EncodeToString(t[:])
	case []common.Address:
		out := make([]string, 0, len(t))
		for _, a := range t {
			out = append(out, a.Hex())
		}
		return out
	case []*big.Int:
		out := make([]string, 0, len(t))
		for _, n := range t {
			if n == nil {
				out = append(out, "0")
				continue
			}
			out = append(out, n.String())
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(t))
		for _, v := range t {
			out = append(out, NormalizeValue(v))
		}
		return out
	}
	return normalizeReflect(v)
}

// normalizeReflect handles fixed byte arrays other than bytes32, tuples and
// arrays of them.
func normalizeReflect(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			for i := range b {
				b[i] = byte(rv.Index(i).Uint())
			}
			return "0x" + hex.EncodeToString(b)
		}
		fallthrough
	case reflect.Slice:
		out := make([]interface{}, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, NormalizeValue(rv.Index(i).Interface()))
		}
		return out
	case reflect.Struct:
		out := make(map[string]interface{}, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			f := rv.Type().Field(i)
			if !f.IsExported() {
				continue
			}
			out[f.Name] = NormalizeValue(rv.Field(i).Interface())
		}
		return out
	}
	return v
}

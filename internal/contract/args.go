package contract

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseArgs converts command line strings to the Go values abi.Pack expects
// for inputs. Array and slice arguments are JSON arrays.
func ParseArgs(inputs abi.Arguments, raw []string) ([]interface{}, error) {
	if len(raw) != len(inputs) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(inputs), len(raw))
	}
	out := make([]interface{}, 0, len(raw))
	for i, in := range inputs {
		v, err := parseArg(in.Type, raw[i])
		if err != nil {
			name := in.Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, in.Type.String(), err)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseArg(t abi.Type, s string) (interface{}, error) {
	s = strings.TrimSpace(s)
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %q", s)
		}
		return common.HexToAddress(s), nil
	case abi.BoolTy:
		return strconv.ParseBool(s)
	case abi.StringTy:
		return s, nil
	case abi.IntTy, abi.UintTy:
		return parseInteger(t, s)
	case abi.BytesTy:
		return hexutil.Decode(s)
	case abi.FixedBytesTy:
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, err
		}
		if len(b) > t.Size {
			return nil, fmt.Errorf("%d bytes do not fit bytes%d", len(b), t.Size)
		}
		arr := reflect.New(t.GetType()).Elem()
		for i, c := range b {
			arr.Index(i).SetUint(uint64(c))
		}
		return arr.Interface(), nil
	case abi.SliceTy, abi.ArrayTy:
		return parseList(t, s)
	default:
		return nil, fmt.Errorf("unsupported argument type %s", t.String())
	}
}

func parseInteger(t abi.Type, s string) (interface{}, error) {
	n, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("%s out of range for uint%d", s, t.Size)
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, fmt.Errorf("%s out of range for int%d", s, t.Size)
		}
	}
	rt := t.GetType()
	switch rt.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v := reflect.New(rt).Elem()
		v.SetUint(n.Uint64())
		return v.Interface(), nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v := reflect.New(rt).Elem()
		v.SetInt(n.Int64())
		return v.Interface(), nil
	}
	return n, nil
}

func parseList(t abi.Type, s string) (interface{}, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, fmt.Errorf("expected a JSON array: %w", err)
	}
	if t.T == abi.ArrayTy && len(items) != t.Size {
		return nil, fmt.Errorf("expected %d elements, got %d", t.Size, len(items))
	}
	var list reflect.Value
	if t.T == abi.ArrayTy {
		list = reflect.New(t.GetType()).Elem()
	} else {
		list = reflect.MakeSlice(t.GetType(), len(items), len(items))
	}
	for i, item := range items {
		text := string(item)
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			text = str
		}
		v, err := parseArg(*t.Elem, text)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		list.Index(i).Set(reflect.ValueOf(v))
	}
	return list.Interface(), nil
}

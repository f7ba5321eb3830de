package keys

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	addressesKey   = "addresses"
	privateKeysKey = "private_keys"
)

// entry is one member of a JSON object; file order is significant because
// accounts are selected by position.
type entry struct {
	Key   string
	Value json.RawMessage
}

type orderedObject []entry

func (o orderedObject) get(key string) (json.RawMessage, bool) {
	for _, e := range o {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func (o *orderedObject) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("expected a JSON object")
	}
	var out orderedObject
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errors.New("expected an object key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		out = append(out, entry{Key: key, Value: raw})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(e.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func readAccountsFile(path string) (orderedObject, orderedObject, orderedObject, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, err
	}
	var top orderedObject
	if err := json.Unmarshal(b, &top); err != nil {
		return nil, nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	var addrs, privs orderedObject
	if raw, ok := top.get(addressesKey); ok {
		if err := json.Unmarshal(raw, &addrs); err != nil {
			return nil, nil, nil, fmt.Errorf("parse %s.%s: %w", path, addressesKey, err)
		}
	} else {
		return nil, nil, nil, fmt.Errorf("%s has no %q object", path, addressesKey)
	}
	if raw, ok := top.get(privateKeysKey); ok {
		if err := json.Unmarshal(raw, &privs); err != nil {
			return nil, nil, nil, fmt.Errorf("parse %s.%s: %w", path, privateKeysKey, err)
		}
	} else {
		return nil, nil, nil, fmt.Errorf("%s has no %q object", path, privateKeysKey)
	}
	return top, addrs, privs, nil
}

// LoadAccountCredentials returns the index-th address of an accounts file
// and its private key.
func LoadAccountCredentials(path string, index int) (common.Address, *ecdsa.PrivateKey, error) {
	_, addrs, privs, err := readAccountsFile(path)
	if err != nil {
		return common.Address{}, nil, err
	}
	if index < 0 || index >= len(addrs) {
		return common.Address{}, nil, fmt.Errorf("cannot find address at index %d", index)
	}
	addrHex := addrs[index].Key
	if !common.IsHexAddress(addrHex) {
		return common.Address{}, nil, fmt.Errorf("invalid address %q at index %d", addrHex, index)
	}
	for _, e := range privs {
		if !strings.EqualFold(e.Key, addrHex) {
			continue
		}
		var keyHex string
		if err := json.Unmarshal(e.Value, &keyHex); err != nil {
			return common.Address{}, nil, fmt.Errorf("private key of %s: %w", addrHex, err)
		}
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimPrefix(keyHex, "0x"), "0X"))
		if err != nil {
			return common.Address{}, nil, fmt.Errorf("private key of %s: %w", addrHex, err)
		}
		return common.HexToAddress(addrHex), key, nil
	}
	return common.Address{}, nil, fmt.Errorf("cannot find private key for address %s", addrHex)
}

// ChecksumAccountsFile rewrites src into dst with EIP-55 checksummed
// addresses, tab indented. Other members are kept in place.
func ChecksumAccountsFile(dst, src string) error {
	top, addrs, privs, err := readAccountsFile(src)
	if err != nil {
		return err
	}
	for i, e := range addrs {
		if !common.IsHexAddress(e.Key) {
			return fmt.Errorf("invalid address %q", e.Key)
		}
		var v string
		if err := json.Unmarshal(e.Value, &v); err != nil {
			return fmt.Errorf("address value of %s: %w", e.Key, err)
		}
		if !common.IsHexAddress(v) {
			return fmt.Errorf("invalid address %q", v)
		}
		val, _ := json.Marshal(common.HexToAddress(v).Hex())
		addrs[i] = entry{Key: common.HexToAddress(e.Key).Hex(), Value: val}
	}
	for i, e := range privs {
		if !common.IsHexAddress(e.Key) {
			return fmt.Errorf("invalid address %q", e.Key)
		}
		privs[i].Key = common.HexToAddress(e.Key).Hex()
	}
	for i, e := range top {
		var err error
		switch e.Key {
		case addressesKey:
			top[i].Value, err = addrs.MarshalJSON()
		case privateKeysKey:
			top[i].Value, err = privs.MarshalJSON()
		}
		if err != nil {
			return err
		}
	}
	compact, err := top.MarshalJSON()
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "\t"); err != nil {
		return err
	}
	return os.WriteFile(dst, out.Bytes(), 0o600)
}

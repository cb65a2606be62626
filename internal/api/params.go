package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/text/unicode/norm"
)

// GetLogsParams is the single parameter object of shadow_getLogs. Values
// are kept as received and validated by GetLogs, so malformed values get
// the method's own error codes.
type GetLogsParams struct {
	Address   AddressList `json:"address,omitempty"`
	Topics    []*string   `json:"topics,omitempty"`
	FromBlock *BlockParam `json:"fromBlock,omitempty"`
	ToBlock   *BlockParam `json:"toBlock,omitempty"`
	BlockHash *string     `json:"blockHash,omitempty"`
}

// AddressList accepts a single address string or an array of them.
type AddressList []string

func (l *AddressList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var many []string
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*l = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return errors.New("address must be a string or an array of strings")
	}
	*l = AddressList{one}
	return nil
}

// BlockParam is a block given as a tag, a hex quantity or a JSON number.
type BlockParam string

func (b *BlockParam) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = BlockParam(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("block must be a string or a number")
	}
	*b = BlockParam(n.String())
	return nil
}

// blockRef is a parsed BlockParam: either a fixed number or latest.
type blockRef struct {
	number uint64
	latest bool
}

// clean trims and NFC-normalizes s so visually identical input parses the
// same way.
func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func parseAddresses(raw AddressList) ([]common.Address, error) {
	out := make([]common.Address, 0, len(raw))
	for _, s := range raw {
		s = clean(s)
		if !common.IsHexAddress(s) {
			return nil, invalidParams("invalid address %q", s)
		}
		out = append(out, common.HexToAddress(s))
	}
	return out, nil
}

func parseTopics(raw []*string) ([4]*common.Hash, error) {
	var out [4]*common.Hash
	if len(raw) > len(out) {
		return out, errTooManyTopics
	}
	for i, s := range raw {
		if s == nil {
			continue
		}
		h, err := parseHash(*s)
		if err != nil {
			return out, invalidParams("invalid topic %d %q", i, *s)
		}
		out[i] = &h
	}
	return out, nil
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(clean(s))
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) != common.HashLength {
		return common.Hash{}, errors.New("hash must be 32 bytes")
	}
	return common.BytesToHash(b), nil
}

func parseBlock(p BlockParam) (blockRef, error) {
	s := strings.ToLower(clean(string(p)))
	switch {
	case s == "latest":
		return blockRef{latest: true}, nil
	case s == "earliest":
		return blockRef{number: 0}, nil
	case strings.HasPrefix(s, "0x"):
		n, err := hexutil.DecodeUint64(s)
		if err != nil {
			return blockRef{}, invalidParams("invalid block %q", string(p))
		}
		return blockRef{number: n}, nil
	default:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return blockRef{}, invalidParams("invalid block %q", string(p))
		}
		return blockRef{number: n}, nil
	}
}

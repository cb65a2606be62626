package contracts

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Load reads an override file. A missing file yields an empty registry.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read contracts file: %w", err)
	}
	return Parse(data)
}

// Parse decodes an address to bytecode mapping. JSON is accepted as a subset
// of YAML. Entries are checked in sorted key order so the reported entry is
// stable when several are malformed.
func Parse(data []byte) (*Registry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return New(nil), nil
	}

	raw, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return New(nil), nil
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	overrides := make(map[common.Address][]byte, len(keys))
	seen := make(map[common.Address]string, len(keys))
	for _, key := range keys {
		if !common.IsHexAddress(key) {
			return nil, &ConfigError{Address: key, Reason: "invalid address"}
		}
		addr := common.HexToAddress(key)
		if prev, dup := seen[addr]; dup {
			return nil, &ConfigError{Address: key, Reason: fmt.Sprintf("duplicate of %s", prev)}
		}
		seen[addr] = key

		text, ok := raw[key].(string)
		if !ok {
			return nil, &ConfigError{Address: key, Reason: fmt.Sprintf("bytecode must be a string, got %T", raw[key])}
		}
		code, err := decodeBytecode(text)
		if err != nil {
			return nil, &ConfigError{Address: key, Reason: fmt.Sprintf("invalid bytecode: %v", err)}
		}
		overrides[addr] = code
	}

	return New(overrides), nil
}

// decodeDocument decodes the top-level mapping through the node tree, so an
// unquoted YAML key or a 0x-prefixed value keeps its source text instead of
// being resolved as an integer.
func decodeDocument(data []byte) (map[string]any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("decode: %v", err)}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return nil, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, &ConfigError{Reason: "decode: document must map addresses to bytecode"}
	}

	raw := make(map[string]any, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, &ConfigError{Reason: fmt.Sprintf("decode: line %d: key must be an address", k.Line)}
		}
		if _, dup := raw[k.Value]; dup {
			return nil, &ConfigError{Address: k.Value, Reason: "duplicate key"}
		}
		val, err := scalarValue(v)
		if err != nil {
			return nil, &ConfigError{Address: k.Value, Reason: fmt.Sprintf("decode: %v", err)}
		}
		raw[k.Value] = val
	}
	return raw, nil
}

// scalarValue returns the source text of a string or 0x-prefixed scalar and
// the decoded value of anything else, which the schema then rejects.
func scalarValue(n *yaml.Node) (any, error) {
	if n.Kind == yaml.ScalarNode && (n.Tag == "!!str" || hasHexPrefix(n.Value)) {
		return n.Value, nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func hasHexPrefix(s string) bool {
	return strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
}

// decodeBytecode accepts hex with or without the 0x prefix.
func decodeBytecode(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !hasHexPrefix(s) {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

// validateSchema unifies the decoded document with #Overrides.
func validateSchema(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile contracts schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Overrides"))
	v := def.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return schemaError(err)
	}
	return nil
}

// schemaError converts the first CUE error into a ConfigError, using the
// last path element as the offending address.
func schemaError(err error) *ConfigError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ConfigError{Reason: err.Error()}
	}

	first := errs[0]
	format, args := first.Msg()
	ce := &ConfigError{Reason: fmt.Sprintf(format, args...)}
	if path := first.Path(); len(path) > 0 {
		ce.Address = strings.Trim(path[len(path)-1], `"`)
	}
	return ce
}

package contracts

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ShapeError is returned when a contract method's outputs cannot be mapped
// onto marketplace records, either at bind time or when decoding a call.
type ShapeError struct {
	Method string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unsupported outputs of %s: %s", e.Method, e.Reason)
}

// fieldSpec names a record field and the output names it may appear under.
type fieldSpec struct {
	key      string
	aliases  []string
	kind     byte
	required bool
}

const (
	fieldAddress       = "address"
	fieldOwner         = "owner"
	fieldName          = "name"
	fieldSymbol        = "symbol"
	fieldSeller        = "seller"
	fieldNFTContract   = "nftContract"
	fieldTokenID       = "tokenId"
	fieldHighestBidder = "highestBidder"
	fieldHighestBid    = "highestBid"
	fieldEndTime       = "endTime"
	fieldSettled       = "settled"
)

var collectionFields = []fieldSpec{
	{key: fieldAddress, aliases: []string{"collectionaddress", "contractaddress", "collection", "address"}, kind: abi.AddressTy},
	{key: fieldOwner, aliases: []string{"owner", "creator"}, kind: abi.AddressTy},
	{key: fieldName, aliases: []string{"name"}, kind: abi.StringTy, required: true},
	{key: fieldSymbol, aliases: []string{"symbol"}, kind: abi.StringTy, required: true},
}

var auctionFields = []fieldSpec{
	{key: fieldSeller, aliases: []string{"seller"}, kind: abi.AddressTy, required: true},
	{key: fieldNFTContract, aliases: []string{"nftcontract", "nft", "collection"}, kind: abi.AddressTy},
	{key: fieldTokenID, aliases: []string{"tokenid", "id"}, kind: abi.UintTy},
	{key: fieldHighestBidder, aliases: []string{"highestbidder"}, kind: abi.AddressTy, required: true},
	{key: fieldHighestBid, aliases: []string{"highestbid"}, kind: abi.UintTy, required: true},
	{key: fieldEndTime, aliases: []string{"endtime", "endsat"}, kind: abi.UintTy, required: true},
	{key: fieldSettled, aliases: []string{"settled"}, kind: abi.BoolTy, required: true},
}

// requiring returns a copy of specs with keys marked required.
func requiring(specs []fieldSpec, keys ...string) []fieldSpec {
	out := make([]fieldSpec, len(specs))
	copy(out, specs)
	for i := range out {
		for _, k := range keys {
			if out[i].key == k {
				out[i].required = true
			}
		}
	}
	return out
}

// recordLayout locates record fields within a method's outputs. Outputs are
// either one tuple or a flat list of named values.
type recordLayout struct {
	method string
	tuple  bool
	width  int
	index  map[string]int
}

// listLayout describes a method returning a list of records, or a list of
// addresses whose records must be read one by one.
type listLayout struct {
	method    string
	addresses bool
	elem      recordLayout
}

func lookupMethod(parsed abi.ABI, name string) (abi.Method, error) {
	m, ok := parsed.Methods[name]
	if !ok {
		return abi.Method{}, &ShapeError{Method: name, Reason: "not present in abi"}
	}
	return m, nil
}

func newRecordLayout(parsed abi.ABI, name string, specs []fieldSpec) (recordLayout, error) {
	m, err := lookupMethod(parsed, name)
	if err != nil {
		return recordLayout{}, err
	}
	if len(m.Outputs) == 0 {
		return recordLayout{}, &ShapeError{Method: name, Reason: "no outputs"}
	}
	if len(m.Outputs) == 1 && m.Outputs[0].Type.T == abi.TupleTy {
		t := m.Outputs[0].Type
		return matchFields(name, true, t.TupleRawNames, t.TupleElems, specs)
	}

	names := make([]string, len(m.Outputs))
	types := make([]*abi.Type, len(m.Outputs))
	for i, arg := range m.Outputs {
		names[i] = arg.Name
		types[i] = &m.Outputs[i].Type
	}
	return matchFields(name, false, names, types, specs)
}

func newListLayout(parsed abi.ABI, name string, specs []fieldSpec, allowAddresses bool) (listLayout, error) {
	m, err := lookupMethod(parsed, name)
	if err != nil {
		return listLayout{}, err
	}
	if len(m.Outputs) != 1 || m.Outputs[0].Type.T != abi.SliceTy {
		return listLayout{}, &ShapeError{Method: name, Reason: "expected a single array output"}
	}
	elem := m.Outputs[0].Type.Elem
	switch {
	case elem.T == abi.AddressTy && allowAddresses:
		return listLayout{method: name, addresses: true}, nil
	case elem.T == abi.TupleTy:
		layout, err := matchFields(name, true, elem.TupleRawNames, elem.TupleElems, specs)
		if err != nil {
			return listLayout{}, err
		}
		return listLayout{method: name, elem: layout}, nil
	default:
		return listLayout{}, &ShapeError{Method: name, Reason: fmt.Sprintf("unsupported element type %s", elem.String())}
	}
}

func matchFields(name string, tuple bool, names []string, types []*abi.Type, specs []fieldSpec) (recordLayout, error) {
	layout := recordLayout{method: name, tuple: tuple, width: len(names), index: make(map[string]int)}
	for _, spec := range specs {
		pos := -1
		for i, n := range names {
			if matchesAlias(n, spec.aliases) {
				pos = i
				break
			}
		}
		if pos < 0 {
			if spec.required {
				return recordLayout{}, &ShapeError{Method: name, Reason: fmt.Sprintf("missing %s field", spec.key)}
			}
			continue
		}
		if types[pos].T != spec.kind {
			return recordLayout{}, &ShapeError{Method: name, Reason: fmt.Sprintf("field %s has type %s", names[pos], types[pos].String())}
		}
		layout.index[spec.key] = pos
	}
	return layout, nil
}

func matchesAlias(name string, aliases []string) bool {
	n := strings.ToLower(strings.Trim(name, "_"))
	for _, a := range aliases {
		if n == a {
			return true
		}
	}
	return false
}

// row holds the decoded fields of one record, keyed by fieldSpec.key.
type row map[string]reflect.Value

// decode extracts a record from a call's outputs.
func (l recordLayout) decode(out []interface{}) (row, error) {
	if !l.tuple {
		if len(out) != l.width {
			return nil, &ShapeError{Method: l.method, Reason: fmt.Sprintf("got %d values, want %d", len(out), l.width)}
		}
		r := make(row, len(l.index))
		for key, i := range l.index {
			r[key] = reflect.ValueOf(out[i])
		}
		return r, nil
	}
	if len(out) != 1 {
		return nil, &ShapeError{Method: l.method, Reason: fmt.Sprintf("got %d values, want 1", len(out))}
	}
	return l.decodeTuple(reflect.ValueOf(out[0]))
}

func (l recordLayout) decodeTuple(v reflect.Value) (row, error) {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct || v.NumField() != l.width {
		return nil, &ShapeError{Method: l.method, Reason: fmt.Sprintf("unexpected tuple value %s", v.Kind())}
	}
	r := make(row, len(l.index))
	for key, i := range l.index {
		r[key] = v.Field(i)
	}
	return r, nil
}

// decodeRows extracts records from a tuple array output.
func (l listLayout) decodeRows(out []interface{}) ([]row, error) {
	if len(out) != 1 {
		return nil, &ShapeError{Method: l.method, Reason: fmt.Sprintf("got %d values, want 1", len(out))}
	}
	v := reflect.ValueOf(out[0])
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, &ShapeError{Method: l.method, Reason: fmt.Sprintf("unexpected list value %s", v.Kind())}
	}
	rows := make([]row, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		r, err := l.elem.decodeTuple(v.Index(i))
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// decodeAddresses extracts an address array output.
func (l listLayout) decodeAddresses(out []interface{}) ([]common.Address, error) {
	if len(out) != 1 {
		return nil, &ShapeError{Method: l.method, Reason: fmt.Sprintf("got %d values, want 1", len(out))}
	}
	addrs, ok := out[0].([]common.Address)
	if !ok {
		return nil, &ShapeError{Method: l.method, Reason: fmt.Sprintf("unexpected value %T", out[0])}
	}
	return addrs, nil
}

func (r row) address(key string) common.Address {
	if v, ok := r[key]; ok && v.IsValid() && v.CanInterface() {
		if a, ok := v.Interface().(common.Address); ok {
			return a
		}
	}
	return common.Address{}
}

func (r row) str(key string) string {
	if v, ok := r[key]; ok && v.IsValid() && v.Kind() == reflect.String {
		return v.String()
	}
	return ""
}

func (r row) boolean(key string) bool {
	if v, ok := r[key]; ok && v.IsValid() && v.Kind() == reflect.Bool {
		return v.Bool()
	}
	return false
}

// bigInt accepts both *big.Int and the native unsigned types abi uses for
// uint8..uint64. Missing fields yield nil.
func (r row) bigInt(key string) *big.Int {
	v, ok := r[key]
	if !ok || !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return new(big.Int).SetUint64(v.Uint())
	}
	if v.CanInterface() {
		if b, ok := v.Interface().(*big.Int); ok && b != nil {
			return new(big.Int).Set(b)
		}
	}
	return nil
}

// convertSingle converts the first output of a scalar method to T. abi
// conversion panics on mismatched types; that is reported as a ShapeError.
func convertSingle[T any](method string, out []interface{}) (v T, err error) {
	if len(out) == 0 {
		return v, &ShapeError{Method: method, Reason: "no values returned"}
	}
	defer func() {
		if r := recover(); r != nil {
			err = &ShapeError{Method: method, Reason: fmt.Sprint(r)}
		}
	}()
	return *abi.ConvertType(out[0], new(T)).(*T), nil
}

// Package dynamotest provides an in-memory DynamoDB stand-in for unit tests.
//
// It understands the expression subset the stores in this module issue:
// comparisons joined by AND, attribute_exists / attribute_not_exists, and
// SET updates with +, -, if_not_exists and list_append. Anything else fails
// loudly so a test never silently passes on an unsupported expression.
package dynamotest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type table struct {
	pk, sk string
	items  map[string]map[string]types.AttributeValue
}

// Fake implements the module's DynamoDBAPI interface in memory.
type Fake struct {
	mu     sync.Mutex
	tables map[string]*table
	fail   map[string]error
	calls  map[string]int
}

// New returns an empty Fake. Tables must be registered with CreateTable.
func New() *Fake {
	return &Fake{
		tables: map[string]*table{},
		fail:   map[string]error{},
		calls:  map[string]int{},
	}
}

// CreateTable registers a table keyed by pk and, when non-empty, sk.
func (f *Fake) CreateTable(name, pk, sk string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = &table{pk: pk, sk: sk, items: map[string]map[string]types.AttributeValue{}}
}

// FailOn makes every subsequent call to op ("PutItem", "Query", ...) return err.
// A nil err clears the injection.
func (f *Fake) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

// Calls returns how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Seed marshals v with attributevalue and stores it unconditionally.
func (f *Fake) Seed(tableName string, v interface{}) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(tableName)
	if err != nil {
		return err
	}
	k, err := t.key(item)
	if err != nil {
		return err
	}
	t.items[k] = item
	return nil
}

// Get unmarshals the stored item with the given key values into out and
// reports whether it exists.
func (f *Fake) Get(tableName string, out interface{}, keys ...string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(tableName)
	if err != nil {
		return false, err
	}
	item, ok := t.items[strings.Join(keys, "|")]
	if !ok {
		return false, nil
	}
	return true, attributevalue.UnmarshalMap(item, out)
}

// Len returns the number of items in a table.
func (f *Fake) Len(tableName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tables[tableName]; ok {
		return len(t.items)
	}
	return 0
}

func (f *Fake) enter(op string) error {
	f.calls[op]++
	return f.fail[op]
}

func (f *Fake) table(name string) (*table, error) {
	t, ok := f.tables[name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: strPtr("table not found: " + name)}
	}
	return t, nil
}

func (t *table) key(item map[string]types.AttributeValue) (string, error) {
	pk, err := scalar(item[t.pk])
	if err != nil {
		return "", fmt.Errorf("partition key %s: %w", t.pk, err)
	}
	if t.sk == "" {
		return pk, nil
	}
	sk, err := scalar(item[t.sk])
	if err != nil {
		return "", fmt.Errorf("sort key %s: %w", t.sk, err)
	}
	return pk + "|" + sk, nil
}

func scalar(av types.AttributeValue) (string, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return v.Value, nil
	case nil:
		return "", errors.New("missing")
	default:
		return "", fmt.Errorf("unsupported key type %T", av)
	}
}

func copyItem(in map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (f *Fake) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PutItem"); err != nil {
		return nil, err
	}
	t, err := f.table(deref(in.TableName))
	if err != nil {
		return nil, err
	}
	k, err := t.key(in.Item)
	if err != nil {
		return nil, err
	}
	ok, err := evalCondition(deref(in.ConditionExpression), t.items[k], in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
	}
	t.items[k] = copyItem(in.Item)
	return &dyn.PutItemOutput{}, nil
}

func (f *Fake) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetItem"); err != nil {
		return nil, err
	}
	t, err := f.table(deref(in.TableName))
	if err != nil {
		return nil, err
	}
	k, err := t.key(in.Key)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *Fake) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateItem"); err != nil {
		return nil, err
	}
	t, err := f.table(deref(in.TableName))
	if err != nil {
		return nil, err
	}
	updated, err := t.update(in.Key, deref(in.ConditionExpression), deref(in.UpdateExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	out := &dyn.UpdateItemOutput{}
	if in.ReturnValues != "" && in.ReturnValues != types.ReturnValueNone {
		out.Attributes = copyItem(updated)
	}
	return out, nil
}

func (t *table) update(key map[string]types.AttributeValue, cond, update string, names map[string]string, values map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	k, err := t.key(key)
	if err != nil {
		return nil, err
	}
	ok, err := evalCondition(cond, t.items[k], names, values)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
	}
	item, exists := t.items[k]
	if exists {
		item = copyItem(item)
	} else {
		item = copyItem(key)
	}
	if err := applyUpdate(update, item, names, values); err != nil {
		return nil, err
	}
	t.items[k] = item
	return item, nil
}

func (f *Fake) Query(ctx context.Context, in *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Query"); err != nil {
		return nil, err
	}
	t, err := f.table(deref(in.TableName))
	if err != nil {
		return nil, err
	}
	items, err := t.filter(deref(in.KeyConditionExpression), deref(in.FilterExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	return &dyn.QueryOutput{Items: items, Count: int32(len(items))}, nil
}

func (f *Fake) Scan(ctx context.Context, in *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Scan"); err != nil {
		return nil, err
	}
	t, err := f.table(deref(in.TableName))
	if err != nil {
		return nil, err
	}
	items, err := t.filter("", deref(in.FilterExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	return &dyn.ScanOutput{Items: items, Count: int32(len(items))}, nil
}

func (t *table) filter(keyCond, filter string, names map[string]string, values map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []map[string]types.AttributeValue
	for _, k := range keys {
		item := t.items[k]
		if keyCond != "" {
			ok, err := evalCondition(keyCond, item, names, values)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		ok, err := evalCondition(filter, item, names, values)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, copyItem(item))
		}
	}
	return out, nil
}

func (f *Fake) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("TransactWriteItems"); err != nil {
		return nil, err
	}

	// First pass: evaluate every condition against the current state.
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, it := range in.TransactItems {
		tbl, key, cond, names, values, err := f.describe(it)
		if err != nil {
			return nil, err
		}
		t, err := f.table(tbl)
		if err != nil {
			return nil, err
		}
		k, err := t.key(key)
		if err != nil {
			return nil, err
		}
		ok, err := evalCondition(cond, t.items[k], names, values)
		if err != nil {
			return nil, err
		}
		reasons[i] = types.CancellationReason{Code: strPtr("None")}
		if !ok {
			reasons[i] = types.CancellationReason{Code: strPtr("ConditionalCheckFailed"), Message: strPtr("The conditional request failed")}
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             strPtr("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	// Second pass: apply writes.
	for _, it := range in.TransactItems {
		switch {
		case it.Put != nil:
			t, _ := f.table(deref(it.Put.TableName))
			k, _ := t.key(it.Put.Item)
			t.items[k] = copyItem(it.Put.Item)
		case it.Update != nil:
			t, _ := f.table(deref(it.Update.TableName))
			if _, err := t.update(it.Update.Key, "", deref(it.Update.UpdateExpression), it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues); err != nil {
				return nil, err
			}
		case it.Delete != nil:
			t, _ := f.table(deref(it.Delete.TableName))
			k, _ := t.key(it.Delete.Key)
			delete(t.items, k)
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (f *Fake) describe(it types.TransactWriteItem) (string, map[string]types.AttributeValue, string, map[string]string, map[string]types.AttributeValue, error) {
	switch {
	case it.Put != nil:
		return deref(it.Put.TableName), it.Put.Item, deref(it.Put.ConditionExpression), it.Put.ExpressionAttributeNames, it.Put.ExpressionAttributeValues, nil
	case it.Update != nil:
		return deref(it.Update.TableName), it.Update.Key, deref(it.Update.ConditionExpression), it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues, nil
	case it.ConditionCheck != nil:
		return deref(it.ConditionCheck.TableName), it.ConditionCheck.Key, deref(it.ConditionCheck.ConditionExpression), it.ConditionCheck.ExpressionAttributeNames, it.ConditionCheck.ExpressionAttributeValues, nil
	case it.Delete != nil:
		return deref(it.Delete.TableName), it.Delete.Key, deref(it.Delete.ConditionExpression), it.Delete.ExpressionAttributeNames, it.Delete.ExpressionAttributeValues, nil
	}
	return "", nil, "", nil, nil, errors.New("empty transact item")
}

// evalCondition evaluates a condition, key-condition or filter expression.
// Clauses are joined by AND and OR without parentheses; AND binds tighter.
// An empty expression is always true.
func evalCondition(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true, nil
	}
	for _, alt := range strings.Split(expr, " OR ") {
		ok, err := evalAll(alt, item, names, values)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func evalAll(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	for _, clause := range strings.Split(expr, " AND ") {
		ok, err := evalClause(strings.TrimSpace(clause), item, names, values)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

var comparators = []string{" <> ", " >= ", " <= ", " = ", " > ", " < "}

func evalClause(clause string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if arg, ok := call(clause, "attribute_exists"); ok {
		_, present := item[resolveName(arg, names)]
		return present, nil
	}
	if arg, ok := call(clause, "attribute_not_exists"); ok {
		_, present := item[resolveName(arg, names)]
		return !present, nil
	}
	for _, op := range comparators {
		idx := strings.Index(clause, op)
		if idx < 0 {
			continue
		}
		lhs, err := operand(strings.TrimSpace(clause[:idx]), item, names, values)
		if err != nil {
			return false, err
		}
		rhs, err := operand(strings.TrimSpace(clause[idx+len(op):]), item, names, values)
		if err != nil {
			return false, err
		}
		if lhs == nil || rhs == nil {
			return false, nil
		}
		return compare(lhs, rhs, strings.TrimSpace(op))
	}
	return false, fmt.Errorf("dynamotest: unsupported clause %q", clause)
}

func call(s, fn string) (string, bool) {
	if !strings.HasPrefix(s, fn+"(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	return strings.TrimSpace(s[len(fn)+1 : len(s)-1]), true
}

func resolveName(tok string, names map[string]string) string {
	if strings.HasPrefix(tok, "#") {
		if n, ok := names[tok]; ok {
			return n
		}
	}
	return tok
}

// operand resolves a value placeholder, function call or attribute path.
func operand(tok string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (types.AttributeValue, error) {
	if strings.HasPrefix(tok, ":") {
		v, ok := values[tok]
		if !ok {
			return nil, fmt.Errorf("dynamotest: missing value %s", tok)
		}
		return v, nil
	}
	if args, ok := call(tok, "if_not_exists"); ok {
		parts := splitTopLevel(args, ',')
		if len(parts) != 2 {
			return nil, fmt.Errorf("dynamotest: bad if_not_exists %q", tok)
		}
		if v, present := item[resolveName(strings.TrimSpace(parts[0]), names)]; present {
			return v, nil
		}
		return operand(strings.TrimSpace(parts[1]), item, names, values)
	}
	if args, ok := call(tok, "list_append"); ok {
		parts := splitTopLevel(args, ',')
		if len(parts) != 2 {
			return nil, fmt.Errorf("dynamotest: bad list_append %q", tok)
		}
		a, err := operand(strings.TrimSpace(parts[0]), item, names, values)
		if err != nil {
			return nil, err
		}
		b, err := operand(strings.TrimSpace(parts[1]), item, names, values)
		if err != nil {
			return nil, err
		}
		var out []types.AttributeValue
		for _, v := range []types.AttributeValue{a, b} {
			if l, ok := v.(*types.AttributeValueMemberL); ok {
				out = append(out, l.Value...)
			}
		}
		return &types.AttributeValueMemberL{Value: out}, nil
	}
	return item[resolveName(tok, names)], nil
}

func compare(a, b types.AttributeValue, op string) (bool, error) {
	an, aIsN := a.(*types.AttributeValueMemberN)
	bn, bIsN := b.(*types.AttributeValueMemberN)
	if aIsN && bIsN {
		x, err := strconv.ParseFloat(an.Value, 64)
		if err != nil {
			return false, err
		}
		y, err := strconv.ParseFloat(bn.Value, 64)
		if err != nil {
			return false, err
		}
		return cmp(x < y, x == y, op), nil
	}
	as, aIsS := a.(*types.AttributeValueMemberS)
	bs, bIsS := b.(*types.AttributeValueMemberS)
	if aIsS && bIsS {
		return cmp(as.Value < bs.Value, as.Value == bs.Value, op), nil
	}
	ab, aIsB := a.(*types.AttributeValueMemberBOOL)
	bb, bIsB := b.(*types.AttributeValueMemberBOOL)
	if aIsB && bIsB {
		switch op {
		case "=":
			return ab.Value == bb.Value, nil
		case "<>":
			return ab.Value != bb.Value, nil
		}
	}
	// mismatched types never compare equal
	return op == "<>", nil
}

func cmp(less, equal bool, op string) bool {
	switch op {
	case "=":
		return equal
	case "<>":
		return !equal
	case "<":
		return less
	case "<=":
		return less || equal
	case ">":
		return !less && !equal
	case ">=":
		return !less
	}
	return false
}

func applyUpdate(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) error {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "SET ") {
		return fmt.Errorf("dynamotest: unsupported update %q", expr)
	}
	for _, assign := range splitTopLevel(strings.TrimPrefix(expr, "SET "), ',') {
		parts := strings.SplitN(assign, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("dynamotest: bad assignment %q", assign)
		}
		target := resolveName(strings.TrimSpace(parts[0]), names)
		rhs := strings.TrimSpace(parts[1])

		var (
			v   types.AttributeValue
			err error
		)
		if idx := indexTopLevel(rhs, " + "); idx >= 0 {
			v, err = arith(rhs[:idx], rhs[idx+3:], 1, item, names, values)
		} else if idx := indexTopLevel(rhs, " - "); idx >= 0 {
			v, err = arith(rhs[:idx], rhs[idx+3:], -1, item, names, values)
		} else {
			v, err = operand(rhs, item, names, values)
		}
		if err != nil {
			return err
		}
		if v == nil {
			return fmt.Errorf("dynamotest: %q resolves to a missing attribute", rhs)
		}
		item[target] = v
	}
	return nil
}

func arith(l, r string, sign float64, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (types.AttributeValue, error) {
	a, err := operand(strings.TrimSpace(l), item, names, values)
	if err != nil {
		return nil, err
	}
	b, err := operand(strings.TrimSpace(r), item, names, values)
	if err != nil {
		return nil, err
	}
	an, ok1 := a.(*types.AttributeValueMemberN)
	bn, ok2 := b.(*types.AttributeValueMemberN)
	if !ok1 || !ok2 {
		return nil, errors.New("dynamotest: arithmetic on non-number")
	}
	x, _ := strconv.ParseFloat(an.Value, 64)
	y, _ := strconv.ParseFloat(bn.Value, 64)
	return &types.AttributeValueMemberN{Value: strconv.FormatFloat(x+sign*y, 'f', -1, 64)}, nil
}

func splitTopLevel(s string, sep rune) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func indexTopLevel(s, sub string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && strings.HasPrefix(s[i:], sub) {
			return i
		}
	}
	return -1
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string { return &s }

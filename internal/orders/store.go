package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/pharmacy-orderflow/internal/aws"
)

// ErrStatusMismatch is returned when a conditional status write finds a
// status other than the one expected.
var ErrStatusMismatch = errors.New("status mismatch/conditional failed")

// TxCanceledError reports a cancelled TransactWriteItems call. Codes holds
// one cancellation code per transact item, in request order.
type TxCanceledError struct {
	Codes []string
	Err   error
}

func (e *TxCanceledError) Error() string {
	return fmt.Sprintf("transaction canceled %v: %v", e.Codes, e.Err)
}

func (e *TxCanceledError) Unwrap() error { return e.Err }

// Failed reports whether the transact item at index i failed its condition.
func (e *TxCanceledError) Failed(i int) bool {
	return i >= 0 && i < len(e.Codes) && e.Codes[i] == "ConditionalCheckFailed"
}

// Store encapsulates operations on the orders table.
type Store struct {
	client        aws.DynamoDBAPI
	tableName     string
	deliveryIndex string
	nowFunc       func() time.Time
}

// NewStore creates a new orders Store. deliveryIndex names the GSI keyed by
// delivery_person_id.
func NewStore(client aws.DynamoDBAPI, tableName, deliveryIndex string) *Store {
	return &Store{
		client:        client,
		tableName:     tableName,
		deliveryIndex: deliveryIndex,
		nowFunc:       time.Now,
	}
}

// CreateTransaction atomically writes order together with the extra transact
// items (stock decrements, history row, idempotency record). The order put is
// always item 0 and is guarded by attribute_not_exists(order_id).
//
// A cancelled transaction is returned as *TxCanceledError so the caller can
// tell which condition failed.
func (s *Store) CreateTransaction(ctx context.Context, order Order, extra ...types.TransactWriteItem) error {
	now := s.nowFunc()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	if order.History == nil {
		order.History = []StatusChange{}
	}

	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	transactItems := make([]types.TransactWriteItem, 0, len(extra)+1)
	transactItems = append(transactItems, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           &s.tableName,
			Item:                orderMap,
			ConditionExpression: awsString("attribute_not_exists(order_id)"),
		},
	})
	transactItems = append(transactItems, extra...)

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			codes := make([]string, len(tce.CancellationReasons))
			for i, r := range tce.CancellationReasons {
				if r.Code != nil {
					codes[i] = *r.Code
				}
			}
			return &TxCanceledError{Codes: codes, Err: err}
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	key := map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            key,
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// UpdateStatus conditionally updates the order status from
// change.From -> change.To and appends change to the history.
// Returns nil on success, ErrStatusMismatch if condition failed.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, change StatusChange) (*Order, error) {
	return s.update(ctx, orderID, change, "", nil)
}

// Assign sets the delivery person and moves the order to change.To, under
// the same status condition as UpdateStatus.
func (s *Store) Assign(ctx context.Context, orderID, personID, personName string, change StatusChange) (*Order, error) {
	return s.update(ctx, orderID, change, ", delivery_person_id = :dp, delivery_person_name = :dpn", map[string]types.AttributeValue{
		":dp":  &types.AttributeValueMemberS{Value: personID},
		":dpn": &types.AttributeValueMemberS{Value: personName},
	})
}

func (s *Store) update(ctx context.Context, orderID string, change StatusChange, extraSet string, extraValues map[string]types.AttributeValue) (*Order, error) {
	now := s.nowFunc()
	if change.At.IsZero() {
		change.At = now
	}
	entry, err := attributevalue.Marshal([]StatusChange{change})
	if err != nil {
		return nil, fmt.Errorf("marshal status change: %w", err)
	}

	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: change.To},
		":expected": &types.AttributeValueMemberS{Value: change.From},
		":ua":       &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)},
		":empty":    &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
		":entry":    entry,
	}
	for k, v := range extraValues {
		values[k] = v
	}

	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:          awsString("SET #s = :new, updated_at = :ua, #h = list_append(if_not_exists(#h, :empty), :entry)" + extraSet),
		ConditionExpression:       awsString("attribute_exists(order_id) AND #s = :expected"),
		ExpressionAttributeNames:  map[string]string{"#s": "status", "#h": "history"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	}

	out, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		if aws.IsConditionalFailure(err) {
			return nil, ErrStatusMismatch
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Attributes, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// ListByDeliveryPerson returns the orders assigned to personID via the
// delivery GSI.
func (s *Store) ListByDeliveryPerson(ctx context.Context, personID string) ([]Order, error) {
	input := &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              &s.deliveryIndex,
		KeyConditionExpression: awsString("delivery_person_id = :dp"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":dp": &types.AttributeValueMemberS{Value: personID},
		},
	}
	var out []Order
	for {
		page, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query delivery index: %w", err)
		}
		var batch []Order
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		out = append(out, batch...)
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }

package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/pharmacy-orderflow/internal/aws"
)

// ErrInvalidItem is returned by Put for items that fail basic checks.
var ErrInvalidItem = errors.New("invalid catalog item")

// Lister lists purchasable catalog items.
type Lister interface {
	ListInStock(ctx context.Context) ([]Item, error)
}

// Getter fetches a single catalog item; (nil, nil) when absent.
type Getter interface {
	Get(ctx context.Context, itemID string) (*Item, error)
}

// Store encapsulates operations on the catalog table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a new catalog Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
	}
}

// Put creates or replaces an item.
func (s *Store) Put(ctx context.Context, it Item) error {
	if it.ID == "" || !it.Kind.Valid() || it.Price < 0 || it.StockQuantity < 0 {
		return ErrInvalidItem
	}
	if it.Kind == KindProduct {
		it.RequiresPrescription = false
	}
	item, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Get fetches an item by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, itemID string) (*Item, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"item_id": &types.AttributeValueMemberS{Value: itemID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var it Item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &it, nil
}

// ListInStock scans both variants for items with stock_quantity > 0,
// following pagination to the end.
func (s *Store) ListInStock(ctx context.Context) ([]Item, error) {
	input := &dyn.ScanInput{
		TableName:        &s.tableName,
		FilterExpression: awsString("stock_quantity > :zero"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
		},
	}

	var items []Item
	for {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan catalog: %w", err)
		}
		page := make([]Item, 0, len(out.Items))
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal catalog page: %w", err)
		}
		items = append(items, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// DecrementStockUpdate builds the transactional update that atomically takes
// quantity units of itemID, refusing to go below zero.
func (s *Store) DecrementStockUpdate(itemID string, quantity int) types.TransactWriteItem {
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName: &s.tableName,
			Key: map[string]types.AttributeValue{
				"item_id": &types.AttributeValueMemberS{Value: itemID},
			},
			UpdateExpression:    awsString("SET stock_quantity = stock_quantity - :q"),
			ConditionExpression: awsString("attribute_exists(item_id) AND stock_quantity >= :q"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":q": &types.AttributeValueMemberN{Value: strconv.Itoa(quantity)},
			},
			ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		},
	}
}

func awsString(s string) *string { return &s }

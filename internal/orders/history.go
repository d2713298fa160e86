package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/pharmacy-orderflow/internal/aws"
)

// HistoryStore holds registered users' order summaries, keyed by
// (user_id, order_id).
type HistoryStore struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewHistoryStore creates a HistoryStore.
func NewHistoryStore(client aws.DynamoDBAPI, tableName string) *HistoryStore {
	return &HistoryStore{client: client, tableName: tableName}
}

// PutItem builds the transactional put for a summary row.
func (h *HistoryStore) PutItem(s OrderSummary) (types.TransactWriteItem, error) {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("marshal order summary: %w", err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: &h.tableName,
			Item:      item,
		},
	}, nil
}

// ErrSummaryNotFound is returned by SetStatus when the order has no summary row.
var ErrSummaryNotFound = errors.New("order summary not found")

// SetStatus mirrors an order's status onto its summary row. Rows that do not
// exist are left alone and reported as ErrSummaryNotFound.
func (h *HistoryStore) SetStatus(ctx context.Context, userID, orderID, status string) error {
	_, err := h.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &h.tableName,
		Key: map[string]types.AttributeValue{
			"user_id":  &types.AttributeValueMemberS{Value: userID},
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:          awsString("SET #s = :s"),
		ConditionExpression:       awsString("attribute_exists(order_id)"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":s": &types.AttributeValueMemberS{Value: status}},
	})
	if err != nil {
		if aws.IsConditionalFailure(err) {
			return ErrSummaryNotFound
		}
		return fmt.Errorf("update order summary: %w", err)
	}
	return nil
}

// ListByUser returns every summary row for userID.
func (h *HistoryStore) ListByUser(ctx context.Context, userID string) ([]OrderSummary, error) {
	input := &dyn.QueryInput{
		TableName:              &h.tableName,
		KeyConditionExpression: awsString("user_id = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
		},
	}
	var out []OrderSummary
	for {
		page, err := h.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query order history: %w", err)
		}
		var batch []OrderSummary
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal order history: %w", err)
		}
		out = append(out, batch...)
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}
}

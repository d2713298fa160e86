package dynamotest

import (
	"context"
	"errors"
	"testing"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type stockRow struct {
	ItemID string `dynamodbav:"item_id"`
	Stock  int    `dynamodbav:"stock_quantity"`
}

func s(v string) *string { return &v }

func TestConditionalDecrement(t *testing.T) {
	f := New()
	f.CreateTable("catalog", "item_id", "")
	if err := f.Seed("catalog", stockRow{ItemID: "m1", Stock: 2}); err != nil {
		t.Fatal(err)
	}

	dec := func(q string) error {
		_, err := f.UpdateItem(context.Background(), &dyn.UpdateItemInput{
			TableName:           s("catalog"),
			Key:                 map[string]types.AttributeValue{"item_id": &types.AttributeValueMemberS{Value: "m1"}},
			UpdateExpression:    s("SET stock_quantity = stock_quantity - :q"),
			ConditionExpression: s("attribute_exists(item_id) AND stock_quantity >= :q"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":q": &types.AttributeValueMemberN{Value: q},
			},
		})
		return err
	}

	if err := dec("2"); err != nil {
		t.Fatalf("first decrement: %v", err)
	}
	var ccf *types.ConditionalCheckFailedException
	if err := dec("1"); !errors.As(err, &ccf) {
		t.Fatalf("expected conditional failure, got %v", err)
	}

	var got stockRow
	if ok, err := f.Get("catalog", &got, "m1"); err != nil || !ok {
		t.Fatalf("get: %v %v", ok, err)
	}
	if got.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", got.Stock)
	}
}

func TestTransactCancellationReasons(t *testing.T) {
	f := New()
	f.CreateTable("catalog", "item_id", "")
	f.CreateTable("orders", "order_id", "")
	_ = f.Seed("catalog", stockRow{ItemID: "m1", Stock: 1})

	_, err := f.TransactWriteItems(context.Background(), &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           s("orders"),
				Item:                map[string]types.AttributeValue{"order_id": &types.AttributeValueMemberS{Value: "o1"}},
				ConditionExpression: s("attribute_not_exists(order_id)"),
			}},
			{Update: &types.Update{
				TableName:                 s("catalog"),
				Key:                       map[string]types.AttributeValue{"item_id": &types.AttributeValueMemberS{Value: "m1"}},
				UpdateExpression:          s("SET stock_quantity = stock_quantity - :q"),
				ConditionExpression:       s("stock_quantity >= :q"),
				ExpressionAttributeValues: map[string]types.AttributeValue{":q": &types.AttributeValueMemberN{Value: "5"}},
			}},
		},
	})
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if *tce.CancellationReasons[0].Code != "None" || *tce.CancellationReasons[1].Code != "ConditionalCheckFailed" {
		t.Fatalf("unexpected reasons: %+v", tce.CancellationReasons)
	}
	if f.Len("orders") != 0 {
		t.Fatal("cancelled transaction must not write")
	}
}

func TestQueryAndListAppend(t *testing.T) {
	f := New()
	f.CreateTable("orders", "order_id", "")
	for _, id := range []string{"o1", "o2", "o3"} {
		person := "d1"
		if id == "o3" {
			person = "d2"
		}
		_ = f.Seed("orders", map[string]interface{}{"order_id": id, "delivery_person_id": person, "history": []string{}})
	}
	out, err := f.Query(context.Background(), &dyn.QueryInput{
		TableName:              s("orders"),
		IndexName:              s("delivery_person_id-index"),
		KeyConditionExpression: s("delivery_person_id = :d"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": &types.AttributeValueMemberS{Value: "d1"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out.Items))
	}

	_, err = f.UpdateItem(context.Background(), &dyn.UpdateItemInput{
		TableName:        s("orders"),
		Key:              map[string]types.AttributeValue{"order_id": &types.AttributeValueMemberS{Value: "o1"}},
		UpdateExpression: s("SET #h = list_append(if_not_exists(#h, :empty), :entry), #s = :new"),
		ExpressionAttributeNames: map[string]string{"#h": "history", "#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberL{},
			":entry": &types.AttributeValueMemberL{Value: []types.AttributeValue{&types.AttributeValueMemberS{Value: "x"}}},
			":new":   &types.AttributeValueMemberS{Value: "processing"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	var row struct {
		History []string `dynamodbav:"history"`
		Status  string   `dynamodbav:"status"`
	}
	if _, err := f.Get("orders", &row, "o1"); err != nil {
		t.Fatal(err)
	}
	if len(row.History) != 1 || row.Status != "processing" {
		t.Fatalf("unexpected row %+v", row)
	}
}

func TestFailOn(t *testing.T) {
	f := New()
	f.CreateTable("orders", "order_id", "")
	boom := errors.New("boom")
	f.FailOn("GetItem", boom)
	_, err := f.GetItem(context.Background(), &dyn.GetItemInput{
		TableName: s("orders"),
		Key:       map[string]types.AttributeValue{"order_id": &types.AttributeValueMemberS{Value: "x"}},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if f.Calls("GetItem") != 1 {
		t.Fatalf("expected 1 call, got %d", f.Calls("GetItem"))
	}
}

func TestConditionWithOr(t *testing.T) {
	f := New()
	f.CreateTable("idempotency", "idempotency_key", "")
	_ = f.Seed("idempotency", map[string]interface{}{"idempotency_key": "old", "expires_at": 100})
	_ = f.Seed("idempotency", map[string]interface{}{"idempotency_key": "live", "expires_at": 900})

	put := func(key string) error {
		_, err := f.PutItem(context.Background(), &dyn.PutItemInput{
			TableName: s("idempotency"),
			Item: map[string]types.AttributeValue{
				"idempotency_key": &types.AttributeValueMemberS{Value: key},
				"expires_at":      &types.AttributeValueMemberN{Value: "2000"},
			},
			ConditionExpression:       s("attribute_not_exists(idempotency_key) OR expires_at <= :now"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":now": &types.AttributeValueMemberN{Value: "500"}},
		})
		return err
	}

	if err := put("new"); err != nil {
		t.Fatalf("absent key: %v", err)
	}
	if err := put("old"); err != nil {
		t.Fatalf("expired key: %v", err)
	}
	var ccf *types.ConditionalCheckFailedException
	if err := put("live"); !errors.As(err, &ccf) {
		t.Fatalf("expected conditional failure for live key, got %v", err)
	}
}

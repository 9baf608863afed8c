// Package audit records registration field changes in DynamoDB.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ignite/conference-hub/internal/domain"
)

// DynamoDBAPI is the part of the DynamoDB client used by the sink.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Item is one change set as stored in the table.
type Item struct {
	PK             string   `dynamodbav:"PK" json:"-"`
	SK             string   `dynamodbav:"SK" json:"-"`
	RegistrationID string   `dynamodbav:"RegistrationID" json:"registration_id"`
	FormID         string   `dynamodbav:"FormID" json:"form_id"`
	Action         string   `dynamodbav:"Action" json:"action"`
	Fields         []string `dynamodbav:"Fields" json:"fields"`
	Changes        string   `dynamodbav:"Changes" json:"changes"`
	Timestamp      string   `dynamodbav:"Timestamp" json:"timestamp"`
	TTL            int64    `dynamodbav:"TTL,omitempty" json:"-"`
}

// Sink writes change sets to a DynamoDB table keyed by registration.
type Sink struct {
	client    DynamoDBAPI
	table     string
	retention time.Duration
	now       func() time.Time
}

// NewSink creates a sink. A zero retention keeps items forever.
func NewSink(client DynamoDBAPI, table string, retention time.Duration) *Sink {
	return &Sink{client: client, table: table, retention: retention, now: time.Now}
}

// BuildItem turns a change set into its table representation.
func BuildItem(reg *domain.Registration, action string, changes map[string]domain.FieldChange, at time.Time, retention time.Duration) (*Item, error) {
	data, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("marshaling changes: %w", err)
	}
	fields := make([]string, 0, len(changes))
	for id := range changes {
		fields = append(fields, id)
	}
	sort.Strings(fields)

	at = at.UTC()
	item := &Item{
		PK:             "REG#" + reg.ID,
		SK:             at.Format(time.RFC3339Nano),
		RegistrationID: reg.ID,
		FormID:         reg.FormID,
		Action:         action,
		Fields:         fields,
		Changes:        string(data),
		Timestamp:      at.Format(time.RFC3339),
	}
	if retention > 0 {
		item.TTL = at.Add(retention).Unix()
	}
	return item, nil
}

// RecordChanges stores one change set.
func (s *Sink) RecordChanges(ctx context.Context, reg *domain.Registration, action string, changes map[string]domain.FieldChange) error {
	item, err := BuildItem(reg, action, changes, s.now(), s.retention)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting item to DynamoDB: %w", err)
	}
	return nil
}

// History returns the change sets of a registration, oldest first.
func (s *Sink) History(ctx context.Context, registrationID string) ([]Item, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "REG#" + registrationID},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying DynamoDB: %w", err)
	}
	var items []Item
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("unmarshaling items: %w", err)
	}
	return items, nil
}

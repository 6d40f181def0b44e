// Package dynamodb stores Markdown export snapshots in a DynamoDB table.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/findirfin/ringil/internal/domain/apperr"
	"github.com/findirfin/ringil/internal/domain/entities"
	"github.com/findirfin/ringil/internal/domain/ports"
)

const pkPrefix = "CHAT#"

// dynamodbAPI is the minimal DynamoDB interface required by Store.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store is a secondary store keyed by conversation id
type Store struct {
	api       dynamodbAPI
	tableName string
}

var (
	_ ports.SecondaryStore = (*Store)(nil)
	_ ports.ExportReader   = (*Store)(nil)
)

// New creates a Store over an existing table with string partition key "PK"
func New(api dynamodbAPI, tableName string) (*Store, error) {
	if api == nil {
		return nil, errors.New("dynamodb: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("dynamodb: table name must not be empty")
	}
	return &Store{api: api, tableName: tableName}, nil
}

// NewFromConfig builds a Store from an AWS SDK configuration
func NewFromConfig(cfg aws.Config, tableName string) (*Store, error) {
	return New(dynamodb.NewFromConfig(cfg), tableName)
}

func chatPK(id int64) string {
	return pkPrefix + strconv.FormatInt(id, 10)
}

// Put writes or replaces the snapshot for record.ID
func (s *Store) Put(ctx context.Context, record *entities.ExportRecord) error {
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      recordItem(record),
	})
	if err != nil {
		return fmt.Errorf("dynamodb: Put %d: %w", record.ID, err)
	}
	return nil
}

// Delete removes the snapshot for id
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: chatPK(id)},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb: Delete %d: %w", id, err)
	}
	return nil
}

// Get returns the snapshot for id
func (s *Store) Get(ctx context.Context, id int64) (*entities.ExportRecord, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: chatPK(id)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb: Get %d: %w", id, err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, apperr.NotFound("export", id)
	}

	rec, err := itemToRecord(out.Item)
	if err != nil {
		return nil, fmt.Errorf("dynamodb: Get %d unmarshal: %w", id, err)
	}
	return rec, nil
}

// List scans the table and returns all snapshots, newest first
func (s *Store) List(ctx context.Context) ([]*entities.ExportRecord, error) {
	var (
		records  []*entities.ExportRecord
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := s.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tableName),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb: List scan: %w", err)
		}
		for _, item := range out.Items {
			rec, err := itemToRecord(item)
			if err != nil {
				return nil, fmt.Errorf("dynamodb: List unmarshal: %w", err)
			}
			records = append(records, rec)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.After(records[j].Timestamp)
		}
		return records[i].ID > records[j].ID
	})
	return records, nil
}

func recordItem(rec *entities.ExportRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: chatPK(rec.ID)},
		"id":        &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.ID, 10)},
		"filename":  &types.AttributeValueMemberS{Value: rec.Filename},
		"title":     &types.AttributeValueMemberS{Value: rec.Title},
		"content":   &types.AttributeValueMemberS{Value: rec.Content},
		"timestamp": &types.AttributeValueMemberS{Value: rec.Timestamp.UTC().Format(time.RFC3339Nano)},
	}
}

func itemToRecord(item map[string]types.AttributeValue) (*entities.ExportRecord, error) {
	id, err := int64Attr(item, "id")
	if err != nil {
		return nil, err
	}
	filename, err := strAttr(item, "filename")
	if err != nil {
		return nil, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return nil, err
	}
	title, _ := strAttr(item, "title") // allow empty
	rawTS, err := strAttr(item, "timestamp")
	if err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, rawTS)
	if err != nil {
		return nil, fmt.Errorf("parse attribute %q: %w", "timestamp", err)
	}

	return &entities.ExportRecord{
		ID:        id,
		Filename:  filename,
		Title:     title,
		Content:   content,
		Timestamp: ts,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %q is not a string", key)
	}
	return s.Value, nil
}

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

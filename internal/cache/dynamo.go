package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// Key layout: one partition per landmark, one item per story type.
const (
	pkPrefix = "LANDMARK#"
	skPrefix = "STORY#"

	// maxBatchWrite is the DynamoDB BatchWriteItem limit per call.
	maxBatchWrite = 25
)

// dynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoStore shares the cache between processes through a DynamoDB table
// with string keys PK and SK.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	now       func() time.Time
}

// Compile-time interface check.
var _ Store = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
func NewDynamoStore(client dynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

func itemKey(key entryKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pkPrefix + key.landmark},
		"SK": &types.AttributeValueMemberS{Value: skPrefix + key.storyType},
	}
}

func (s *DynamoStore) Get(ctx context.Context, landmark, storyType string) (*Entry, error) {
	key, err := makeKey(landmark, storyType)
	if err != nil {
		return nil, err
	}

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		Key:            itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem %s/%s: %w", key.landmark, key.storyType, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var entry Entry
	if err := attributevalue.UnmarshalMap(result.Item, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal %s/%s: %w", key.landmark, key.storyType, err)
	}
	return entry.clone(), nil
}

// Put upserts with a single UpdateItem so created_at survives overwrites.
func (s *DynamoStore) Put(ctx context.Context, landmark, storyType, videoPath string, metadata map[string]string) error {
	key, err := makeKey(landmark, storyType)
	if err != nil {
		return err
	}

	if metadata == nil {
		metadata = map[string]string{}
	}
	meta, err := attributevalue.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	now, err := attributevalue.Marshal(s.now().UTC())
	if err != nil {
		return fmt.Errorf("marshal timestamp: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              itemKey(key),
		UpdateExpression: aws.String("SET #ln = :ln, #st = :st, #vp = :vp, #md = :md, #ua = :now, #ca = if_not_exists(#ca, :now)"),
		ExpressionAttributeNames: map[string]string{
			"#ln": "landmark_name",
			"#st": "story_type",
			"#vp": "video_path",
			"#md": "metadata",
			"#ua": "updated_at",
			"#ca": "created_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ln":  &types.AttributeValueMemberS{Value: key.landmark},
			":st":  &types.AttributeValueMemberS{Value: key.storyType},
			":vp":  &types.AttributeValueMemberS{Value: videoPath},
			":md":  meta,
			":now": now,
		},
	})
	if err != nil {
		return fmt.Errorf("UpdateItem %s/%s: %w", key.landmark, key.storyType, err)
	}

	log.Debug().Str("landmark", key.landmark).Str("story_type", key.storyType).Msg("Cache entry stored")
	return nil
}

func (s *DynamoStore) Delete(ctx context.Context, landmark, storyType string) (int, error) {
	name := NormalizeLandmark(landmark)
	if name == "" {
		return 0, ErrEmptyLandmark
	}

	if IsClip(storyType) {
		key := entryKey{landmark: name, storyType: NormalizeStoryType(storyType)}
		result, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:    &s.tableName,
			Key:          itemKey(key),
			ReturnValues: types.ReturnValueAllOld,
		})
		if err != nil {
			return 0, fmt.Errorf("DeleteItem %s/%s: %w", key.landmark, key.storyType, err)
		}
		if len(result.Attributes) == 0 {
			return 0, nil
		}
		return 1, nil
	}

	// A story type also owns its clips, so the whole partition is read and
	// filtered by sort key.
	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk"),
		ProjectionExpression:   aws.String("PK, SK"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pkPrefix + name},
		},
	}

	var keys []map[string]types.AttributeValue
	// Query returns at most 1MB per call.
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return 0, fmt.Errorf("Query %s: %w", name, err)
		}
		for _, item := range result.Items {
			sk, ok := item["SK"].(*types.AttributeValueMemberS)
			if !ok || !storyTypeMatches(strings.TrimPrefix(sk.Value, skPrefix), storyType) {
				continue
			}
			keys = append(keys, map[string]types.AttributeValue{"PK": item["PK"], "SK": item["SK"]})
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	if err := s.batchDeleteKeys(ctx, keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *DynamoStore) DeleteAll(ctx context.Context) (int, error) {
	items, err := s.scanAll(ctx)
	if err != nil {
		return 0, err
	}

	keys := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		keys = append(keys, map[string]types.AttributeValue{"PK": item["PK"], "SK": item["SK"]})
	}
	if err := s.batchDeleteKeys(ctx, keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *DynamoStore) List(ctx context.Context) ([]Entry, error) {
	items, err := s.scanAll(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		var entry Entry
		if err := attributevalue.UnmarshalMap(item, &entry); err != nil {
			return nil, fmt.Errorf("unmarshal cache entry: %w", err)
		}
		entries = append(entries, entry)
	}
	sortEntries(entries)
	return entries, nil
}

func (s *DynamoStore) Stats(ctx context.Context) (Stats, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return computeStats(entries), nil
}

// scanAll returns every cache item in the table, following pagination.
func (s *DynamoStore) scanAll(ctx context.Context) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.ScanInput{
		TableName:        &s.tableName,
		FilterExpression: aws.String("begins_with(PK, :pk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pkPrefix},
		},
	}

	var items []map[string]types.AttributeValue
	for {
		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Scan %s: %w", s.tableName, err)
		}
		items = append(items, result.Items...)
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return items, nil
}

// batchDeleteKeys deletes items in chunks of maxBatchWrite.
func (s *DynamoStore) batchDeleteKeys(ctx context.Context, keys []map[string]types.AttributeValue) error {
	for i := 0; i < len(keys); i += maxBatchWrite {
		end := min(i+maxBatchWrite, len(keys))

		requests := make([]types.WriteRequest, 0, end-i)
		for _, key := range keys[i:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: key},
			})
		}

		result, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				s.tableName: requests,
			},
		})
		if err != nil {
			return fmt.Errorf("BatchWriteItem delete (%d items): %w", len(requests), err)
		}
		if n := len(result.UnprocessedItems[s.tableName]); n > 0 {
			log.Warn().Int("unprocessed", n).Msg("Some cache entries were not deleted")
		}
	}
	return nil
}

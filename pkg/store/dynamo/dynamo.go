// Package dynamo stores documents in a DynamoDB table. Each document is one
// item keyed by collection (partition key) and id (sort key); the form data
// lives in a map attribute next to a version counter used for optimistic
// read-modify-write.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-formsync/pkg/store"
)

// DynamoClient is the subset of the DynamoDB API the store uses. The AWS
// client satisfies it; tests provide fakes.
type DynamoClient interface {
	GetItem(ctx context.Context, params *ddb.GetItemInput, optFns ...func(*ddb.Options)) (*ddb.GetItemOutput, error)
	PutItem(ctx context.Context, params *ddb.PutItemInput, optFns ...func(*ddb.Options)) (*ddb.PutItemOutput, error)
}

// Item attribute names.
const (
	AttrData      = "data"
	AttrVersion   = "version"
	AttrUpdatedAt = "updatedAt"
)

// Condition expressions used on writes.
const (
	CondNotExists    = "attribute_not_exists(#pk)"
	CondVersionMatch = "#version = :version"
)

const defaultMaxRetries = 3

// ErrConflict is returned when a read-modify-write keeps losing to
// concurrent writers.
var ErrConflict = errors.New("dynamo: concurrent modification")

// Options configures a Store.
type Options struct {
	Table        string
	PartitionKey string
	SortKey      string
	// PollInterval enables polling for changes written by other processes.
	// Zero disables it; local writes are always delivered.
	PollInterval time.Duration
	MaxRetries   int
	Now          func() time.Time
	Logger       *zap.Logger
}

// Store implements store.DocumentStore on DynamoDB.
type Store struct {
	client DynamoClient
	opts   Options
	hub    *store.Hub

	mu       sync.Mutex
	versions map[string]int64
	closed   bool
}

var _ store.DocumentStore = (*Store)(nil)

// New creates a store for opts.Table.
func New(client DynamoClient, opts Options) (*Store, error) {
	if client == nil {
		return nil, errors.New("dynamo: nil client")
	}
	if strings.TrimSpace(opts.Table) == "" {
		return nil, errors.New("dynamo: table is required")
	}
	if opts.PartitionKey == "" {
		opts.PartitionKey = "pk"
	}
	if opts.SortKey == "" {
		opts.SortKey = "sk"
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Store{
		client:   client,
		opts:     opts,
		hub:      store.NewHub(),
		versions: make(map[string]int64),
	}, nil
}

func (s *Store) Subscribe(ctx context.Context, ref store.Ref, fn store.SnapshotFunc) (store.Unsubscribe, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("dynamo: subscribe %s: nil callback", ref)
	}
	snap, version, err := s.read(ctx, ref)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, store.ErrClosed
	}
	s.observeLocked(ref, version)
	unsubscribe := s.hub.Subscribe(ctx, ref, snap, fn)
	s.mu.Unlock()

	if s.opts.PollInterval <= 0 {
		return unsubscribe, nil
	}

	pollCtx, cancel := context.WithCancel(ctx)
	go s.poll(pollCtx, ref)
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			unsubscribe()
		})
	}, nil
}

func (s *Store) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	if strings.TrimSpace(collection) == "" {
		return "", fmt.Errorf("%w: empty collection", store.ErrInvalidRef)
	}
	ref := store.Ref{Collection: collection, ID: uuid.NewString()}
	if err := s.put(ctx, ref, data, 0, false); err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (s *Store) Set(ctx context.Context, ref store.Ref, data map[string]any, merge bool) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if !merge {
		return s.put(ctx, ref, data, -1, false)
	}
	return s.readModifyWrite(ctx, ref, func(current store.Snapshot) (map[string]any, error) {
		if !current.Exists {
			return data, nil
		}
		return store.Merge(current.Data, data), nil
	})
}

func (s *Store) Update(ctx context.Context, ref store.Ref, partial map[string]any) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	return s.readModifyWrite(ctx, ref, func(current store.Snapshot) (map[string]any, error) {
		if !current.Exists {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, ref)
		}
		return store.ApplyUpdate(current.Data, partial)
	})
}

func (s *Store) Get(ctx context.Context, ref store.Ref) (store.Snapshot, error) {
	if err := ref.Validate(); err != nil {
		return store.Snapshot{}, err
	}
	snap, _, err := s.read(ctx, ref)
	return snap, err
}

// Close stops every subscription and poller.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}

func (s *Store) readModifyWrite(ctx context.Context, ref store.Ref, build func(store.Snapshot) (map[string]any, error)) error {
	for attempt := 0; attempt < s.opts.MaxRetries; attempt++ {
		current, version, err := s.read(ctx, ref)
		if err != nil {
			return err
		}
		data, err := build(current)
		if err != nil {
			return err
		}
		err = s.put(ctx, ref, data, version, current.Exists)
		if !isConditionFailure(err) {
			return err
		}
		s.opts.Logger.Debug("dynamo: write conflict, retrying",
			zap.String("ref", ref.String()), zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("%w: %s", ErrConflict, ref)
}

// put writes data. expected < 0 writes unconditionally; otherwise the item
// must be absent (exists=false) or carry the expected version.
func (s *Store) put(ctx context.Context, ref store.Ref, data map[string]any, expected int64, exists bool) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return store.ErrClosed
	}

	now := s.opts.Now()
	resolved := store.ResolveTimestamps(data, now)
	if resolved == nil {
		resolved = map[string]any{}
	}
	body, err := attributevalue.MarshalMap(resolved)
	if err != nil {
		return fmt.Errorf("dynamo: marshal %s: %w", ref, err)
	}

	version := expected + 1
	if expected < 0 {
		version = now.UnixNano()
	}
	input := &ddb.PutItemInput{
		TableName: aws.String(s.opts.Table),
		Item: map[string]types.AttributeValue{
			s.opts.PartitionKey: &types.AttributeValueMemberS{Value: ref.Collection},
			s.opts.SortKey:      &types.AttributeValueMemberS{Value: ref.ID},
			AttrData:            &types.AttributeValueMemberM{Value: body},
			AttrVersion:         &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)},
			AttrUpdatedAt:       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
	}
	switch {
	case expected < 0:
	case !exists:
		input.ConditionExpression = aws.String(CondNotExists)
		input.ExpressionAttributeNames = map[string]string{"#pk": s.opts.PartitionKey}
	default:
		input.ConditionExpression = aws.String(CondVersionMatch)
		input.ExpressionAttributeNames = map[string]string{"#version": AttrVersion}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":version": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
		}
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		if isConditionFailure(err) {
			return err
		}
		return fmt.Errorf("dynamo: put %s: %w", ref, err)
	}

	var stored map[string]any
	if err := attributevalue.UnmarshalMap(body, &stored); err != nil {
		return fmt.Errorf("dynamo: unmarshal %s: %w", ref, err)
	}
	s.mu.Lock()
	if s.observeLocked(ref, version) {
		s.hub.Publish(store.Snapshot{Ref: ref, Exists: true, Data: stored, UpdatedAt: now})
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) read(ctx context.Context, ref store.Ref) (store.Snapshot, int64, error) {
	out, err := s.client.GetItem(ctx, &ddb.GetItemInput{
		TableName:      aws.String(s.opts.Table),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			s.opts.PartitionKey: &types.AttributeValueMemberS{Value: ref.Collection},
			s.opts.SortKey:      &types.AttributeValueMemberS{Value: ref.ID},
		},
	})
	if err != nil {
		return store.Snapshot{}, 0, fmt.Errorf("dynamo: get %s: %w", ref, err)
	}
	if out == nil || len(out.Item) == 0 {
		return store.Snapshot{Ref: ref}, 0, nil
	}

	snap := store.Snapshot{Ref: ref, Exists: true, Data: map[string]any{}}
	if raw, ok := out.Item[AttrData].(*types.AttributeValueMemberM); ok {
		if err := attributevalue.UnmarshalMap(raw.Value, &snap.Data); err != nil {
			return store.Snapshot{}, 0, fmt.Errorf("dynamo: unmarshal %s: %w", ref, err)
		}
	}
	var version int64
	if raw, ok := out.Item[AttrVersion].(*types.AttributeValueMemberN); ok {
		version, _ = strconv.ParseInt(raw.Value, 10, 64)
	}
	if raw, ok := out.Item[AttrUpdatedAt].(*types.AttributeValueMemberS); ok {
		snap.UpdatedAt, _ = store.AsTime(raw.Value)
	}
	return snap, version, nil
}

func (s *Store) poll(ctx context.Context, ref store.Ref) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		snap, version, err := s.read(ctx, ref)
		if ctx.Err() != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		switch {
		case err != nil:
			s.hub.Fail(ref, err)
		case snap.Exists && s.observeLocked(ref, version):
			s.hub.Publish(snap)
		}
		s.mu.Unlock()
	}
}

// observeLocked records version for ref and reports whether it is new.
func (s *Store) observeLocked(ref store.Ref, version int64) bool {
	key := ref.Path()
	if known, ok := s.versions[key]; ok && known == version {
		return false
	}
	s.versions[key] = version
	return true
}

func isConditionFailure(err error) bool {
	if err == nil {
		return false
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	return strings.Contains(err.Error(), "ConditionalCheckFailed")
}

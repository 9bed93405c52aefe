// Package mongostore keeps event collections in MongoDB, one document per
// event keyed by user key and event id.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dukerupert/planwise/internal/model"
	"github.com/dukerupert/planwise/internal/store"
)

const (
	eventsCollection   = "events"
	countersCollection = "counters"
)

type eventDoc struct {
	UserKey       string         `bson:"user_key"`
	ID            string         `bson:"id"`
	Seq           int64          `bson:"seq"`
	Title         string         `bson:"title"`
	Description   string         `bson:"description"`
	Location      string         `bson:"location"`
	Start         time.Time      `bson:"start"`
	End           *time.Time     `bson:"end,omitempty"`
	AllDay        bool           `bson:"all_day"`
	Attendees     []string       `bson:"attendees"`
	Recurrence    string         `bson:"recurrence"`
	ExtendedProps map[string]any `bson:"extended_props,omitempty"`
	CreatedAt     time.Time      `bson:"created_at"`
	UpdatedAt     *time.Time     `bson:"updated_at,omitempty"`
}

func toDoc(userKey string, ev model.Event) eventDoc {
	rec := ev.Recurrence
	if rec == "" {
		rec = model.RecurrenceNone
	}
	d := eventDoc{
		UserKey:       userKey,
		ID:            ev.ID,
		Title:         ev.Title,
		Description:   ev.Description,
		Location:      ev.Location,
		Start:         ev.Start.UTC(),
		AllDay:        ev.AllDay,
		Attendees:     ev.Attendees,
		Recurrence:    string(rec),
		ExtendedProps: ev.ExtendedProps,
		CreatedAt:     ev.CreatedAt.UTC(),
		UpdatedAt:     ev.UpdatedAt,
	}
	if d.Attendees == nil {
		d.Attendees = []string{}
	}
	if ev.End != nil {
		end := ev.End.UTC()
		d.End = &end
	}
	return d
}

func (d eventDoc) event() model.Event {
	ev := model.Event{
		ID:            d.ID,
		Title:         d.Title,
		Description:   d.Description,
		Location:      d.Location,
		Start:         d.Start,
		End:           d.End,
		AllDay:        d.AllDay,
		Recurrence:    model.Recurrence(d.Recurrence),
		ExtendedProps: d.ExtendedProps,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	if len(d.Attendees) > 0 {
		ev.Attendees = d.Attendees
	}
	ev.Normalize()
	return ev
}

type EventStore struct {
	events   *mongo.Collection
	counters *mongo.Collection
	now      func() time.Time
}

// Connect dials uri, pings it, and returns the client.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// New returns a store over db and ensures its indexes exist.
func New(ctx context.Context, db *mongo.Database) (*EventStore, error) {
	s := &EventStore{
		events:   db.Collection(eventsCollection),
		counters: db.Collection(countersCollection),
		now:      time.Now,
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_key", Value: 1}, {Key: "id", Value: 1}},
			Options: options.Index().SetName("user_event_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "user_key", Value: 1}, {Key: "seq", Value: 1}},
			Options: options.Index().SetName("user_event_order"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return s, nil
}

func (s *EventStore) List(ctx context.Context, userKey string) ([]model.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cursor, err := s.events.Find(ctx, bson.M{"user_key": userKey}, opts)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []eventDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	events := make([]model.Event, 0, len(docs))
	for _, d := range docs {
		events = append(events, d.event())
	}
	return events, nil
}

// stamp returns the current time rounded up to BSON's millisecond
// precision, so a stored stamp never precedes the call.
func (s *EventStore) stamp() time.Time {
	now := s.now().UTC()
	if t := now.Truncate(time.Millisecond); t.Before(now) {
		return t.Add(time.Millisecond)
	}
	return now
}

func (s *EventStore) Create(ctx context.Context, userKey string, ev model.Event) (*model.Event, error) {
	ev = ev.Clone()
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalid, err)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.CreatedAt = s.stamp()
	ev.UpdatedAt = nil
	ev.Normalize()

	seq, err := s.nextSeq(ctx, userKey)
	if err != nil {
		return nil, err
	}
	doc := toDoc(userKey, ev)
	doc.Seq = seq
	if _, err := s.events.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("event %s: %w", ev.ID, store.ErrConflict)
		}
		return nil, fmt.Errorf("insert event: %w", err)
	}
	out := doc.event()
	return &out, nil
}

func (s *EventStore) Update(ctx context.Context, userKey, eventID string, patch model.EventPatch) (*model.Event, error) {
	filter := bson.M{"user_key": userKey, "id": eventID}

	var current eventDoc
	err := s.events.FindOne(ctx, filter).Decode(&current)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find event: %w", err)
	}

	ev := current.event()
	patch.Apply(&ev)
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalid, err)
	}
	updated := s.stamp()
	ev.UpdatedAt = &updated
	ev.Normalize()

	doc := toDoc(userKey, ev)
	doc.Seq = current.Seq
	opts := options.FindOneAndReplace().SetReturnDocument(options.After)
	var saved eventDoc
	err = s.events.FindOneAndReplace(ctx, filter, doc, opts).Decode(&saved)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("replace event: %w", err)
	}
	out := saved.event()
	return &out, nil
}

func (s *EventStore) Delete(ctx context.Context, userKey, eventID string) error {
	res, err := s.events.DeleteOne(ctx, bson.M{"user_key": userKey, "id": eventID})
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// nextSeq returns a per-user increasing sequence number for ordering.
func (s *EventStore) nextSeq(ctx context.Context, userKey string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "events:" + userKey},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return counter.Seq, nil
}

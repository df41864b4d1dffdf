package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/socialserver/backend/internal/db"
	"github.com/socialserver/backend/internal/ids"
	"github.com/socialserver/backend/internal/logging"
	"github.com/socialserver/backend/internal/models"
)

// Messages persists directed messages stamped with the server clock.
type Messages struct {
	conn       Connection
	collection string
	users      UserFinder
	clock      *Clock
}

// NewMessages constructs a Messages repository over the named collection.
func NewMessages(conn Connection, collection string, users UserFinder, clock *Clock) *Messages {
	if clock == nil {
		clock = NewClock(nil)
	}
	return &Messages{conn: conn, collection: collection, users: users, clock: clock}
}

// Send stores a message from one existing user to another. Sending to oneself
// is allowed.
func (r *Messages) Send(ctx context.Context, from, to, text string) (message models.Message, err error) {
	ctx, span := logging.StartSpan(ctx, "messages.send")
	defer func() { span.End(err) }()

	coll, err := r.conn.Collection(r.collection)
	if err != nil {
		return models.Message{}, err
	}
	if !ids.Valid(from) || !ids.Valid(to) {
		return models.Message{}, ErrInvalidIDs
	}
	if strings.TrimSpace(text) == "" {
		return models.Message{}, ErrEmptyMessage
	}

	users, err := r.users.GetManyByID(ctx, []string{from, to})
	if err != nil {
		return models.Message{}, err
	}
	if len(distinctUsers(users)) != len(distinct(from, to)) {
		return models.Message{}, ErrNoSuchUser
	}

	message = models.Message{
		ID:      newID(),
		From:    from,
		To:      to,
		Message: text,
		Time:    r.clock.Millis(),
	}
	if err := coll.InsertOne(ctx, message.ID, message); err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return message, nil
}

// Get looks a message up by id.
func (r *Messages) Get(ctx context.Context, id string) (message models.Message, found bool, err error) {
	ctx, span := logging.StartSpan(ctx, "messages.get")
	defer func() { span.End(err) }()

	coll, err := r.conn.Collection(r.collection)
	if err != nil {
		return models.Message{}, false, err
	}
	if !ids.Valid(id) {
		return models.Message{}, false, ErrInvalidID
	}

	found, err = coll.FindOne(ctx, db.ByID(id), &message)
	if err != nil {
		return models.Message{}, false, fmt.Errorf("find message: %w", err)
	}
	return message, found, nil
}

// ListInbox returns the messages addressed to id with a time strictly after
// after, oldest first. Polling with the time of the last message seen returns
// only newer messages.
func (r *Messages) ListInbox(ctx context.Context, id string, after int64) (messages []models.Message, err error) {
	ctx, span := logging.StartSpan(ctx, "messages.list_inbox")
	defer func() { span.End(err) }()

	coll, err := r.conn.Collection(r.collection)
	if err != nil {
		return nil, err
	}
	if !ids.Valid(id) {
		return nil, ErrInvalidID
	}

	filter := db.Where(db.Eq(models.FieldTo, id), db.Gt(models.FieldTime, after))
	if err := coll.Find(ctx, filter, &messages, db.SortAsc(models.FieldTime)); err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	return messages, nil
}

// Delete removes a message, reporting whether it existed.
func (r *Messages) Delete(ctx context.Context, id string) (removed bool, err error) {
	ctx, span := logging.StartSpan(ctx, "messages.delete")
	defer func() { span.End(err) }()

	coll, err := r.conn.Collection(r.collection)
	if err != nil {
		return false, err
	}
	if !ids.Valid(id) {
		return false, ErrInvalidID
	}

	n, err := coll.DeleteOne(ctx, db.ByID(id))
	if err != nil {
		return false, fmt.Errorf("delete message: %w", err)
	}
	return n > 0, nil
}

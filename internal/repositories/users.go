package repositories

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/socialserver/backend/internal/db"
	"github.com/socialserver/backend/internal/ids"
	"github.com/socialserver/backend/internal/logging"
	"github.com/socialserver/backend/internal/models"
	"github.com/socialserver/backend/internal/params"
)

var registerFields = map[string]struct{}{
	models.FieldUsername: {},
	models.FieldPassword: {},
}

var userFilterFields = map[string]struct{}{
	models.FieldID:       {},
	models.FieldUsername: {},
	models.FieldPassword: {},
	models.FieldToken:    {},
}

// Users persists accounts and their session tokens.
type Users struct {
	conn        Connection
	collection  string
	tokens      TokenGenerator
	tokenLength int
}

// NewUsers constructs a Users repository over the named collection.
func NewUsers(conn Connection, collection string, tokens TokenGenerator, tokenLength int) *Users {
	return &Users{conn: conn, collection: collection, tokens: tokens, tokenLength: tokenLength}
}

// Register creates a user from exactly a username and a password.
func (r *Users) Register(ctx context.Context, p params.Params) (user models.User, err error) {
	ctx, span := logging.StartSpan(ctx, "users.register")
	defer func() { span.End(err) }()

	coll, err := r.conn.Collection(r.collection)
	if err != nil {
		return models.User{}, err
	}

	if len(p) != len(registerFields) {
		return models.User{}, ErrInvalidParamSet
	}
	for key := range p {
		if _, ok := registerFields[key]; !ok {
			return models.User{}, ErrInvalidParamSet
		}
	}
	username, okName := p.String(models.FieldUsername)
	password, okPass := p.String(models.FieldPassword)
	if !okName || !okPass || strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return models.User{}, ErrMissingParams
	}

	var existing models.User
	found, err := coll.FindOne(ctx, db.Where(db.Eq(models.FieldUsername, username)), &existing)
	if err != nil {
		return models.User{}, fmt.Errorf("find user by username: %w", err)
	}
	if found {
		return models.User{}, ErrUsernameTaken
	}

	token, err := r.tokens.Generate(ctx, r.tokenLength)
	if err != nil {
		return models.User{}, fmt.Errorf("generate token: %w", err)
	}

	user = models.User{
		ID:       newID(),
		Username: username,
		Password: password,
		Token:    token,
	}
	if err := coll.InsertOne(ctx, user.ID, user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return models.User{}, ErrUsernameTaken
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// GetUser returns the single user matching every non-blank field of filter.
// The boolean is false when no user matches.
func (r *Users) GetUser(ctx context.Context, filter params.Params) (user models.User, found bool, err error) {
	ctx, span := logging.StartSpan(ctx, "users.get")
	defer func() { span.End(err) }()

	coll, err := r.conn.Collection(r.collection)
	if err != nil {
		return models.User{}, false, err
	}

	f := filter.Clone()
	params.Sanitize(f)
	if len(f) == 0 {
		return models.User{}, false, ErrNoParams
	}

	// Users only carry string fields, so a filter on any other field or with
	// a non-string value matches nothing.
	keys := make([]string, 0, len(f))
	for key := range f {
		if _, ok := userFilterFields[key]; !ok {
			return models.User{}, false, nil
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	conds := make([]db.Cond, 0, len(keys))
	for _, key := range keys {
		value, ok := f.String(key)
		if !ok {
			return models.User{}, false, nil
		}
		conds = append(conds, db.Eq(key, value))
	}

	found, err = coll.FindOne(ctx, db.Where(conds...), &user)
	if err != nil {
		return models.User{}, false, fmt.Errorf("find user: %w", err)
	}
	return user, found, nil
}

// GetByID looks a user up by primary key.
func (r *Users) GetByID(ctx context.Context, id string) (models.User, bool, error) {
	return r.GetUser(ctx, params.Params{models.FieldID: id})
}

// GetManyByID returns whichever of the identified users exist. Missing ids
// yield no entry, so callers compare lengths when they need all of them.
func (r *Users) GetManyByID(ctx context.Context, userIDs []string) (users []models.User, err error) {
	ctx, span := logging.StartSpan(ctx, "users.get_many")
	defer func() { span.End(err) }()

	coll, err := r.conn.Collection(r.collection)
	if err != nil {
		return nil, err
	}
	if !ids.AllValid(userIDs) {
		return nil, ErrInvalidIDs
	}

	if err := coll.Find(ctx, db.Where(db.In(models.FieldID, userIDs)), &users); err != nil {
		return nil, fmt.Errorf("find users by id: %w", err)
	}
	return users, nil
}

// Search returns the users whose username contains term, ordered by username.
func (r *Users) Search(ctx context.Context, term string) (users []models.User, err error) {
	ctx, span := logging.StartSpan(ctx, "users.search")
	defer func() { span.End(err) }()

	coll, err := r.conn.Collection(r.collection)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(term) == "" {
		return nil, ErrEmptySearchTerm
	}

	err = coll.Find(ctx, db.Where(db.Contains(models.FieldUsername, term)), &users, db.SortAsc(models.FieldUsername))
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// RotateToken replaces the user's session token and returns the new one.
func (r *Users) RotateToken(ctx context.Context, id string) (token string, err error) {
	ctx, span := logging.StartSpan(ctx, "users.rotate_token")
	defer func() { span.End(err) }()

	coll, err := r.conn.Collection(r.collection)
	if err != nil {
		return "", err
	}
	if !ids.Valid(id) {
		return "", ErrInvalidID
	}

	token, err = r.tokens.Generate(ctx, r.tokenLength)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	user, err := r.update(ctx, coll, id, map[string]any{models.FieldToken: token})
	if err != nil {
		return "", err
	}
	return user.Token, nil
}

// ChangePassword stores password for the user, first rotating the session
// token when resetToken is set. The value is stored as given; hashing belongs
// to the caller.
func (r *Users) ChangePassword(ctx context.Context, id, password string, resetToken bool) (user models.User, err error) {
	ctx, span := logging.StartSpan(ctx, "users.change_password")
	defer func() { span.End(err) }()

	coll, err := r.conn.Collection(r.collection)
	if err != nil {
		return models.User{}, err
	}
	if !ids.Valid(id) {
		return models.User{}, ErrInvalidID
	}
	if strings.TrimSpace(password) == "" {
		return models.User{}, ErrMissingParams
	}

	if resetToken {
		if _, err := r.RotateToken(ctx, id); err != nil {
			return models.User{}, err
		}
	}
	return r.update(ctx, coll, id, map[string]any{models.FieldPassword: password})
}

// CheckToken reports whether token is the current session token of the user.
// Unknown users, malformed ids and empty tokens are not authenticated.
func (r *Users) CheckToken(ctx context.Context, token, id string) (ok bool, err error) {
	ctx, span := logging.StartSpan(ctx, "users.check_token")
	defer func() { span.End(err) }()

	if _, err := r.conn.Collection(r.collection); err != nil {
		return false, err
	}
	if token == "" || !ids.Valid(id) {
		return false, nil
	}

	user, found, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !found || user.Token == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(user.Token), []byte(token)) == 1, nil
}

func (r *Users) update(ctx context.Context, coll db.Collection, id string, set map[string]any) (models.User, error) {
	n, err := coll.UpdateOne(ctx, db.ByID(id), set)
	if err != nil {
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return models.User{}, ErrNoDocumentUpdated
	}

	var user models.User
	found, err := coll.FindOne(ctx, db.ByID(id), &user)
	if err != nil {
		return models.User{}, fmt.Errorf("reload user: %w", err)
	}
	if !found {
		return models.User{}, ErrNoDocumentUpdated
	}
	return user, nil
}

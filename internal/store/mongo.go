package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/eldtechnologies/chatterbox/internal/crypto"
	"github.com/eldtechnologies/chatterbox/internal/models"
)

const (
	usersCollection    = "users"
	messagesCollection = "messages"
	hiddenCollection   = "deletedusers"
)

// MongoStore handles MongoDB document operations.
type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	messages *mongo.Collection
	hidden   *mongo.Collection
}

// docID reads a reference stored either as a string or as an ObjectId.
// Documents created by other writers of these collections carry ObjectIds;
// this store writes strings.
type docID string

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (d *docID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	if oid, ok := rv.ObjectIDOK(); ok {
		*d = docID(oid.Hex())
		return nil
	}
	if str, ok := rv.StringValueOK(); ok {
		*d = docID(str)
		return nil
	}
	return fmt.Errorf("store: unsupported id type %s", t)
}

// idValues lists every stored form id may take.
func idValues(id string) bson.A {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.A{id, oid}
	}
	return bson.A{id}
}

// idMatch matches a reference field against id in any stored form.
func idMatch(id string) bson.M {
	return bson.M{"$in": idValues(id)}
}

type userDoc struct {
	ID         docID     `bson:"_id"`
	FullName   string    `bson:"fullName"`
	Email      string    `bson:"email"`
	Password   string    `bson:"password"`
	ProfilePic string    `bson:"profilePic,omitempty"`
	CreatedAt  time.Time `bson:"createdAt"`
}

type attachmentDoc struct {
	URL      string `bson:"url"`
	Filename string `bson:"filename"`
	MimeType string `bson:"mimeType"`
	Size     int64  `bson:"size"`
}

type messageDoc struct {
	ID         docID          `bson:"_id"`
	SenderID   docID          `bson:"senderId"`
	ReceiverID docID          `bson:"receiverId"`
	Text       string         `bson:"text,omitempty"`
	Image      string         `bson:"image,omitempty"`
	File       *attachmentDoc `bson:"file,omitempty"`
	CreatedAt  time.Time      `bson:"createdAt"`
}

type hiddenDoc struct {
	UserID        docID     `bson:"userId"`
	DeletedUserID docID     `bson:"deletedUserId"`
	CreatedAt     time.Time `bson:"createdAt"`
}

// NewMongoStore connects to MongoDB and ensures indexes exist.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		users:    db.Collection(usersCollection),
		messages: db.Collection(messagesCollection),
		hidden:   db.Collection(hiddenCollection),
	}

	_, err = s.hidden.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "deletedUserId", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "receiverId", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return s, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.client.Disconnect(ctx)
}

// Ping checks the database connection.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// CreateUser inserts a user document, assigning an ID when unset.
func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = crypto.NewID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	_, err := s.users.InsertOne(ctx, userDoc{
		ID:         docID(user.ID),
		FullName:   user.FullName,
		Email:      user.Email,
		Password:   user.Password,
		ProfilePic: user.ProfilePic,
		CreatedAt:  user.CreatedAt,
	})
	return err
}

// GetUserByID retrieves a user by ID.
func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"_id": idMatch(id)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	user := doc.toModel()
	return &user, nil
}

// ListUsersExcept returns every user other than id in natural order.
func (s *MongoStore) ListUsersExcept(ctx context.Context, id string) ([]models.User, error) {
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$nin": idValues(id)}})
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc.toModel())
	}
	return users, nil
}

// CountUsers returns the total number of users.
func (s *MongoStore) CountUsers(ctx context.Context) (int64, error) {
	return s.users.CountDocuments(ctx, bson.D{})
}

// CreateMessage appends a message document.
func (s *MongoStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = crypto.NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	doc := messageDoc{
		ID:         docID(msg.ID),
		SenderID:   docID(msg.SenderID),
		ReceiverID: docID(msg.ReceiverID),
		Text:       msg.Text,
		Image:      msg.Image,
		CreatedAt:  msg.CreatedAt,
	}
	if msg.File != nil {
		doc.File = &attachmentDoc{
			URL:      msg.File.URL,
			Filename: msg.File.Filename,
			MimeType: msg.File.MimeType,
			Size:     msg.File.Size,
		}
	}

	_, err := s.messages.InsertOne(ctx, doc)
	return err
}

// GetMessage retrieves a message by ID.
func (s *MongoStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var doc messageDoc
	err := s.messages.FindOne(ctx, bson.M{"_id": idMatch(id)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	msg := doc.toModel()
	return &msg, nil
}

// ListConversation returns the messages exchanged between two users in both
// directions, in natural order.
func (s *MongoStore) ListConversation(ctx context.Context, userA, userB string) ([]models.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"senderId": idMatch(userA), "receiverId": idMatch(userB)},
		bson.M{"senderId": idMatch(userB), "receiverId": idMatch(userA)},
	}}
	cur, err := s.messages.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, doc.toModel())
	}
	return messages, nil
}

// DeleteMessage removes a message document.
func (s *MongoStore) DeleteMessage(ctx context.Context, id string) (bool, error) {
	res, err := s.messages.DeleteOne(ctx, bson.M{"_id": idMatch(id)})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// CountMessages returns the total number of stored messages.
func (s *MongoStore) CountMessages(ctx context.Context) (int64, error) {
	return s.messages.CountDocuments(ctx, bson.D{})
}

// HideContact upserts the hidden-contact edge. An existing edge in either
// id form satisfies the upsert.
func (s *MongoStore) HideContact(ctx context.Context, ownerID, hiddenUserID string) error {
	_, err := s.hidden.UpdateOne(ctx,
		bson.M{"userId": idMatch(ownerID), "deletedUserId": idMatch(hiddenUserID)},
		bson.M{"$setOnInsert": bson.M{
			"userId":        ownerID,
			"deletedUserId": hiddenUserID,
			"createdAt":     time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

// HiddenContactIDs returns the users ownerID has hidden.
func (s *MongoStore) HiddenContactIDs(ctx context.Context, ownerID string) ([]string, error) {
	cur, err := s.hidden.Find(ctx, bson.M{"userId": idMatch(ownerID)})
	if err != nil {
		return nil, err
	}
	var docs []hiddenDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, string(doc.DeletedUserID))
	}
	return ids, nil
}

func (d userDoc) toModel() models.User {
	return models.User{
		ID:         string(d.ID),
		FullName:   d.FullName,
		Email:      d.Email,
		Password:   d.Password,
		ProfilePic: d.ProfilePic,
		CreatedAt:  d.CreatedAt.UTC(),
	}
}

func (d messageDoc) toModel() models.Message {
	msg := models.Message{
		ID:         string(d.ID),
		SenderID:   string(d.SenderID),
		ReceiverID: string(d.ReceiverID),
		Text:       d.Text,
		Image:      d.Image,
		CreatedAt:  d.CreatedAt.UTC(),
	}
	if d.File != nil {
		msg.File = &models.Attachment{
			URL:      d.File.URL,
			Filename: d.File.Filename,
			MimeType: d.File.MimeType,
			Size:     d.File.Size,
		}
	}
	return msg
}

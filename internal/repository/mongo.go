package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mr1hm/relief-hub/internal/models"
)

const (
	reportsCollection   = "disasters"
	donationsCollection = "donations"
	usersCollection     = "users"
)

// MongoStore keeps each record type in its own collection. Documents carry an
// ObjectID _id that is exposed to callers as its hex string.
type MongoStore struct {
	client    *mongo.Client
	reports   *mongo.Collection
	donations *mongo.Collection
	users     *mongo.Collection
	clock     clockwork.Clock
}

type reportDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	models.Report `bson:",inline"`
}

// storedReport is the read shape for reports. Older rows may carry location
// as a JSON string or with latitude/longitude keys, and the image under
// imageUrl.
type storedReport struct {
	ID          primitive.ObjectID `bson:"_id"`
	Location    bson.RawValue      `bson:"location"`
	Type        string             `bson:"type"`
	Severity    string             `bson:"severity"`
	Description string             `bson:"description"`
	State       string             `bson:"state"`
	ImageRef    string             `bson:"imageRef"`
	ImageURL    string             `bson:"imageUrl"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

func (d *storedReport) report() models.Report {
	r := models.Report{
		ID:          d.ID.Hex(),
		Location:    storedLocation(d.Location),
		Type:        d.Type,
		Severity:    models.Severity(d.Severity),
		Description: d.Description,
		State:       d.State,
		ImageRef:    d.ImageRef,
		CreatedAt:   d.CreatedAt,
	}
	if r.ImageRef == "" {
		r.ImageRef = d.ImageURL
	}
	return r
}

// storedLocation normalizes whatever a row holds under location. Values that
// do not describe a valid pair read as no location.
func storedLocation(rv bson.RawValue) *models.Location {
	var obj map[string]any
	switch rv.Type {
	case bson.TypeEmbeddedDocument:
		if err := rv.Unmarshal(&obj); err != nil {
			return nil
		}
	case bson.TypeString:
		if err := json.Unmarshal([]byte(rv.StringValue()), &obj); err != nil {
			return nil
		}
	default:
		return nil
	}
	return models.LocationFromFields(obj)
}

// decodeReports drains the cursor, skipping rows that cannot be read at all.
func decodeReports(ctx context.Context, cursor *mongo.Cursor) ([]models.Report, error) {
	reports := []models.Report{}
	for cursor.Next(ctx) {
		var doc storedReport
		if err := cursor.Decode(&doc); err != nil {
			slog.Warn("skipping unreadable report", "id", cursor.Current.Lookup("_id").String(), "error", err)
			continue
		}
		reports = append(reports, doc.report())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error reading reports: %w", err)
	}
	return reports, nil
}

type donationDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	models.Donation `bson:",inline"`
}

type userDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	models.User `bson:",inline"`
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("error while pinging mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:    client,
		reports:   db.Collection(reportsCollection),
		donations: db.Collection(donationsCollection),
		users:     db.Collection(usersCollection),
		clock:     clockwork.NewRealClock(),
	}

	_, err = s.users.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("error creating users email index: %w", err)
	}

	return s, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.clock.Now().UTC()
	}
	return t.UTC()
}

func insertedID(res *mongo.InsertOneResult) (string, error) {
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (s *MongoStore) AddReport(ctx context.Context, r *models.Report) error {
	doc := reportDoc{Report: *r}
	doc.CreatedAt = s.stamp(r.CreatedAt)

	res, err := s.reports.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("error inserting report: %w", err)
	}
	id, err := insertedID(res)
	if err != nil {
		return err
	}

	r.ID = id
	r.CreatedAt = doc.CreatedAt
	return nil
}

func (s *MongoStore) ListReports(ctx context.Context) ([]models.Report, error) {
	cursor, err := s.reports.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("error querying reports: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeReports(ctx, cursor)
}

func (s *MongoStore) CountReports(ctx context.Context) (int64, error) {
	n, err := s.reports.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("error counting reports: %w", err)
	}
	return n, nil
}

func (s *MongoStore) AddDonation(ctx context.Context, d *models.Donation) error {
	doc := donationDoc{Donation: *d}
	doc.CreatedAt = s.stamp(d.CreatedAt)

	res, err := s.donations.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("error inserting donation: %w", err)
	}
	id, err := insertedID(res)
	if err != nil {
		return err
	}

	d.ID = id
	d.CreatedAt = doc.CreatedAt
	return nil
}

func (s *MongoStore) ListDonations(ctx context.Context) ([]models.Donation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.donations.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying donations: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []donationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("error decoding donations: %w", err)
	}

	donations := make([]models.Donation, 0, len(docs))
	for _, d := range docs {
		donation := d.Donation
		donation.ID = d.ID.Hex()
		donations = append(donations, donation)
	}
	return donations, nil
}

func (s *MongoStore) AddUser(ctx context.Context, u *models.User) error {
	doc := userDoc{User: *u}
	doc.Email = strings.ToLower(u.Email)
	doc.CreatedAt = s.stamp(u.CreatedAt)

	res, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error inserting user: %w", err)
	}
	id, err := insertedID(res)
	if err != nil {
		return err
	}

	u.ID = id
	u.Email = doc.Email
	u.CreatedAt = doc.CreatedAt
	return nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	u := doc.User
	u.ID = doc.ID.Hex()
	return &u, nil
}

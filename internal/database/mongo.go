package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"caidasapi/internal/models"
)

// Collection names.
const (
	usersCollection  = "usuarios"
	imagesCollection = "imagenes"
	eventsCollection = "caidas"
)

// MongoOptions configures OpenMongo.
type MongoOptions struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	// Timeout bounds every single operation on the client.
	Timeout time.Duration
}

// MongoStore is the document database backend. Ids are ObjectID hex strings.
type MongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
	images *mongo.Collection
	events *mongo.Collection
	logger *zap.Logger
}

type userDoc struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Name         string        `bson:"nombre"`
	Email        string        `bson:"email"`
	PasswordHash string        `bson:"password"`
	Phone        string        `bson:"telefono,omitempty"`
	RegisteredAt time.Time     `bson:"fecha_registro"`
}

type hostedURLsDoc struct {
	Original  string `bson:"original"`
	Optimized string `bson:"optimizada"`
	Thumbnail string `bson:"miniatura"`
}

type metadataDoc struct {
	Format   string `bson:"formato"`
	ByteSize int64  `bson:"tamano_bytes"`
	Width    int    `bson:"ancho"`
	Height   int    `bson:"alto"`
}

type imageDoc struct {
	ID            bson.ObjectID  `bson:"_id,omitempty"`
	Description   string         `bson:"descripcion"`
	UploadedAt    time.Time      `bson:"fecha_subida"`
	SourceType    string         `bson:"tipo_origen"`
	Source        string         `bson:"origen,omitempty"`
	URLs          *hostedURLsDoc `bson:"urls,omitempty"`
	HostID        string         `bson:"cloudinary_id,omitempty"`
	Metadata      *metadataDoc   `bson:"metadata,omitempty"`
	LinkedEventID string         `bson:"caida_id,omitempty"`
	Status        string         `bson:"estado"`
	ErrorMessage  string         `bson:"error,omitempty"`
}

type eventDoc struct {
	ID         bson.ObjectID   `bson:"_id,omitempty"`
	Category   string          `bson:"categoria,omitempty"`
	Severity   string          `bson:"severidad"`
	Location   string          `bson:"ubicacion"`
	Details    string          `bson:"detalles,omitempty"`
	OccurredAt time.Time       `bson:"fecha"`
	ImageIDs   []bson.ObjectID `bson:"imagenes"`
}

// OpenMongo connects, pings and ensures the unique email index.
func OpenMongo(ctx context.Context, opts MongoOptions, logger *zap.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(opts.ConnectTimeout).
		SetServerSelectionTimeout(opts.ConnectTimeout)
	if opts.Timeout > 0 {
		clientOpts.SetTimeout(opts.Timeout)
	}

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	db := client.Database(opts.Database)
	s := &MongoStore{
		client: client,
		users:  db.Collection(usersCollection),
		images: db.Collection(imagesCollection),
		events: db.Collection(eventsCollection),
		logger: logger,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("connected to mongo", zap.String("database", opts.Database))
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("creating email index: %w", err)
	}

	_, err = s.images.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "caida_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("creating caida_id index: %w", err)
	}
	return nil
}

func (s *MongoStore) ValidID(id string) bool {
	_, err := bson.ObjectIDFromHex(id)
	return err == nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	res, err := s.users.InsertOne(ctx, userDoc{
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Phone:        u.Phone,
		RegisteredAt: u.RegisteredAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	u.ID = insertedHex(res)
	return nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.D{{Key: "email", Value: email}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding user %s: %w", email, err)
	}

	return &models.User{
		ID:           doc.ID.Hex(),
		Name:         doc.Name,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		Phone:        doc.Phone,
		RegisteredAt: doc.RegisteredAt,
	}, nil
}

func (s *MongoStore) UpdateUser(ctx context.Context, email string, upd models.UserUpdate) (bool, error) {
	set := bson.D{}
	if upd.Name != nil {
		set = append(set, bson.E{Key: "nombre", Value: *upd.Name})
	}
	if upd.PasswordHash != nil {
		set = append(set, bson.E{Key: "password", Value: *upd.PasswordHash})
	}
	if upd.Phone != nil {
		set = append(set, bson.E{Key: "telefono", Value: *upd.Phone})
	}

	filter := bson.D{{Key: "email", Value: email}}
	if len(set) == 0 {
		n, err := s.users.CountDocuments(ctx, filter)
		if err != nil {
			return false, fmt.Errorf("counting user %s: %w", email, err)
		}
		return n > 0, nil
	}

	res, err := s.users.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return false, fmt.Errorf("updating user %s: %w", email, err)
	}
	return res.MatchedCount > 0, nil
}

func (s *MongoStore) CreateEvent(ctx context.Context, e *models.Event) error {
	res, err := s.events.InsertOne(ctx, eventDoc{
		Category:   e.Category,
		Severity:   e.Severity,
		Location:   e.Location,
		Details:    e.Details,
		OccurredAt: e.OccurredAt,
		ImageIDs:   []bson.ObjectID{},
	})
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	e.ID = insertedHex(res)
	e.ImageIDs = []string{}
	return nil
}

func (s *MongoStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var doc eventDoc
	err = s.events.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding event %s: %w", id, err)
	}

	e := doc.toModel()
	return &e, nil
}

func (s *MongoStore) ListEvents(ctx context.Context, f models.EventFilter) ([]models.Event, error) {
	filter := bson.D{}
	if f.ID != "" {
		oid, err := bson.ObjectIDFromHex(f.ID)
		if err != nil {
			return []models.Event{}, nil
		}
		filter = append(filter, bson.E{Key: "_id", Value: oid})
	}
	if f.Category != "" {
		filter = append(filter, bson.E{Key: "categoria", Value: f.Category})
	}
	if f.Severity != "" {
		filter = append(filter, bson.E{Key: "severidad", Value: f.Severity})
	}
	if f.Location != "" {
		filter = append(filter, bson.E{Key: "ubicacion", Value: f.Location})
	}

	cur, err := s.events.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("finding events: %w", err)
	}

	var docs []eventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding events: %w", err)
	}

	events := make([]models.Event, 0, len(docs))
	for _, d := range docs {
		events = append(events, d.toModel())
	}
	return events, nil
}

func (s *MongoStore) AppendEventImage(ctx context.Context, eventID, imageID string) error {
	eid, err := bson.ObjectIDFromHex(eventID)
	if err != nil {
		return ErrEventNotFound
	}
	iid, err := bson.ObjectIDFromHex(imageID)
	if err != nil {
		return fmt.Errorf("image id %q: %w", imageID, err)
	}

	// $push is atomic on a single document, concurrent appends are all kept.
	res, err := s.events.UpdateByID(ctx, eid, bson.D{{Key: "$push", Value: bson.D{{Key: "imagenes", Value: iid}}}})
	if err != nil {
		return fmt.Errorf("appending image %s to event %s: %w", imageID, eventID, err)
	}
	if res.MatchedCount == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (s *MongoStore) CreateImage(ctx context.Context, img *models.Image) error {
	doc := imageDoc{
		Description:   img.Description,
		UploadedAt:    img.UploadedAt,
		SourceType:    img.SourceType,
		Source:        img.Source,
		HostID:        img.HostID,
		LinkedEventID: img.LinkedEventID,
		Status:        img.Status,
		ErrorMessage:  img.ErrorMessage,
	}
	if img.URLs != nil {
		doc.URLs = &hostedURLsDoc{
			Original:  img.URLs.Original,
			Optimized: img.URLs.Optimized,
			Thumbnail: img.URLs.Thumbnail,
		}
	}
	if img.Metadata != nil {
		doc.Metadata = &metadataDoc{
			Format:   img.Metadata.Format,
			ByteSize: img.Metadata.ByteSize,
			Width:    img.Metadata.Width,
			Height:   img.Metadata.Height,
		}
	}

	res, err := s.images.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("inserting image: %w", err)
	}

	img.ID = insertedHex(res)
	return nil
}

func (s *MongoStore) GetImagesByIDs(ctx context.Context, ids []string) ([]models.Image, error) {
	oids := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := bson.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []models.Image{}, nil
	}

	images, err := s.findImages(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: oids}}}})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Image, len(images))
	for _, img := range images {
		byID[img.ID] = img
	}
	return orderByIDs(ids, byID), nil
}

// ListImages matches the description as a literal, case-insensitive substring.
func (s *MongoStore) ListImages(ctx context.Context, f models.ImageFilter) ([]models.Image, error) {
	filter := bson.D{}
	if f.EventID != "" {
		filter = append(filter, bson.E{Key: "caida_id", Value: f.EventID})
	}
	if f.Description != "" {
		filter = append(filter, bson.E{Key: "descripcion", Value: bson.Regex{
			Pattern: regexp.QuoteMeta(f.Description),
			Options: "i",
		}})
	}
	return s.findImages(ctx, filter)
}

func (s *MongoStore) Totals(ctx context.Context) (models.Totals, error) {
	var t models.Totals
	for _, c := range []struct {
		coll *mongo.Collection
		dst  *int64
	}{
		{s.users, &t.Users},
		{s.images, &t.Images},
		{s.events, &t.Events},
	} {
		n, err := c.coll.CountDocuments(ctx, bson.D{})
		if err != nil {
			return models.Totals{}, fmt.Errorf("counting %s: %w", c.coll.Name(), err)
		}
		*c.dst = n
	}
	return t, nil
}

func (s *MongoStore) findImages(ctx context.Context, filter bson.D) ([]models.Image, error) {
	cur, err := s.images.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("finding images: %w", err)
	}

	var docs []imageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding images: %w", err)
	}

	images := make([]models.Image, 0, len(docs))
	for _, d := range docs {
		images = append(images, d.toModel())
	}
	return images, nil
}

func (d eventDoc) toModel() models.Event {
	ids := make([]string, 0, len(d.ImageIDs))
	for _, oid := range d.ImageIDs {
		ids = append(ids, oid.Hex())
	}
	return models.Event{
		ID:         d.ID.Hex(),
		Category:   d.Category,
		Severity:   d.Severity,
		Location:   d.Location,
		Details:    d.Details,
		OccurredAt: d.OccurredAt,
		ImageIDs:   ids,
	}
}

func (d imageDoc) toModel() models.Image {
	img := models.Image{
		ID:            d.ID.Hex(),
		Description:   d.Description,
		UploadedAt:    d.UploadedAt,
		SourceType:    d.SourceType,
		Source:        d.Source,
		HostID:        d.HostID,
		LinkedEventID: d.LinkedEventID,
		Status:        d.Status,
		ErrorMessage:  d.ErrorMessage,
	}
	if d.URLs != nil {
		img.URLs = &models.HostedURLs{
			Original:  d.URLs.Original,
			Optimized: d.URLs.Optimized,
			Thumbnail: d.URLs.Thumbnail,
		}
	}
	if d.Metadata != nil {
		img.Metadata = &models.ImageMetadata{
			Format:   d.Metadata.Format,
			ByteSize: d.Metadata.ByteSize,
			Width:    d.Metadata.Width,
			Height:   d.Metadata.Height,
		}
	}
	return img
}

func insertedHex(res *mongo.InsertOneResult) string {
	if oid, ok := res.InsertedID.(bson.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(res.InsertedID)
}

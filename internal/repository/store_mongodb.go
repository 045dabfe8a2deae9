package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"baro-tracker-api/internal/canonical"
	"baro-tracker-api/internal/logger"
	"baro-tracker-api/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	itemsCollection      = "items"
	unknownCollection    = "unknown_items"
	statusCollection     = "current"
	pushTokensCollection = "push_tokens"
	likesCollection      = "likes"
	reviewsCollection    = "reviews"
	marketsCollection    = "markets"

	statusDocumentID = "vendor"
)

// MongoStore implements Store using MongoDB.
type MongoStore struct {
	client  *mongo.Client
	db      *mongo.Database
	items   *mongo.Collection
	unknown *mongo.Collection
	status  *mongo.Collection
	tokens  *mongo.Collection
	likes   *mongo.Collection
	reviews *mongo.Collection
	markets *mongo.Collection
}

// NewMongoStore connects to MongoDB and ensures the collection indexes.
func NewMongoStore(uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:  client,
		db:      db,
		items:   db.Collection(itemsCollection),
		unknown: db.Collection(unknownCollection),
		status:  db.Collection(statusCollection),
		tokens:  db.Collection(pushTokensCollection),
		likes:   db.Collection(likesCollection),
		reviews: db.Collection(reviewsCollection),
		markets: db.Collection(marketsCollection),
	}
	s.ensureIndexes(ctx)

	logger.Log.Infof("[MongoDB] Connected to %s", database)
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) {
	nonEmptyPath := bson.M{"canonical_path": bson.M{"$gt": ""}}
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.items, mongo.IndexModel{
			Keys:    bson.D{{Key: "canonical_path", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(nonEmptyPath),
		}},
		{s.items, mongo.IndexModel{Keys: bson.D{{Key: "canonical_segment", Value: 1}}}},
		{s.items, mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}}},
		{s.unknown, mongo.IndexModel{
			Keys:    bson.D{{Key: "unique_name", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.tokens, mongo.IndexModel{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.likes, mongo.IndexModel{
			Keys:    bson.D{{Key: "item_oid", Value: 1}, {Key: "uid", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.reviews, mongo.IndexModel{
			Keys:    bson.D{{Key: "item_oid", Value: 1}, {Key: "uid", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.markets, mongo.IndexModel{
			Keys:    bson.D{{Key: "item_oid", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
	}
	for _, ix := range indexes {
		if _, err := ix.coll.Indexes().CreateOne(ctx, ix.model); err != nil {
			logger.Log.Warnf("[MongoDB] Failed to create index on %s: %v", ix.coll.Name(), err)
		}
	}
}

// itemDocument is a catalog item in MongoDB.
type itemDocument struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Name             string             `bson:"name"`
	CanonicalPath    string             `bson:"canonical_path,omitempty"`
	CanonicalSegment string             `bson:"canonical_segment,omitempty"`
	Type             string             `bson:"type"`
	CreditPrice      int                `bson:"credit_price"`
	DucatPrice       int                `bson:"ducat_price"`
	Image            string             `bson:"image,omitempty"`
	Link             string             `bson:"link,omitempty"`
	OfferingDates    []string           `bson:"offering_dates"`
	Likes            []string           `bson:"likes"`
	Reviews          []string           `bson:"reviews"`
	WishlistTokens   []string           `bson:"wishlist_tokens"`
	WishlistCount    int                `bson:"wishlist_count"`
}

func (d *itemDocument) toModel() *model.CatalogItem {
	return &model.CatalogItem{
		ID:             d.ID.Hex(),
		Name:           d.Name,
		CanonicalPath:  d.CanonicalPath,
		Type:           d.Type,
		CreditPrice:    d.CreditPrice,
		DucatPrice:     d.DucatPrice,
		Image:          d.Image,
		Link:           d.Link,
		OfferingDates:  nonNil(d.OfferingDates),
		LikeRefs:       nonNil(d.Likes),
		ReviewRefs:     nonNil(d.Reviews),
		WishlistTokens: nonNil(d.WishlistTokens),
		WishlistCount:  d.WishlistCount,
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return oid, nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*model.CatalogItem, error) {
	var doc itemDocument
	err := s.items.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find item: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) findMany(ctx context.Context, filter bson.M) ([]*model.CatalogItem, error) {
	cur, err := s.items.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer cur.Close(ctx)

	var docs []itemDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	items := make([]*model.CatalogItem, 0, len(docs))
	for i := range docs {
		items = append(items, docs[i].toModel())
	}
	return items, nil
}

func missingPathFilter() bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"canonical_path": bson.M{"$exists": false}},
		bson.M{"canonical_path": nil},
		bson.M{"canonical_path": ""},
	}}
}

// FindBySegment matches on the stored final segment and verifies the full path.
func (s *MongoStore) FindBySegment(ctx context.Context, segment string) (*model.CatalogItem, error) {
	if segment == "" {
		return nil, nil
	}
	items, err := s.findMany(ctx, bson.M{"canonical_segment": segment})
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if canonical.Path(item.CanonicalPath).EndsWithSegment(segment) {
			return item, nil
		}
	}
	return nil, nil
}

func (s *MongoStore) FindLegacyByName(ctx context.Context, name string) (*model.CatalogItem, error) {
	filter := missingPathFilter()
	filter["name"] = name
	return s.findOne(ctx, filter)
}

func (s *MongoStore) FindMissingCanonicalPath(ctx context.Context) ([]*model.CatalogItem, error) {
	return s.findMany(ctx, missingPathFilter())
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*model.CatalogItem, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	item, err := s.findOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return item, nil
}

func (s *MongoStore) FindByIDs(ctx context.Context, ids []string) ([]*model.CatalogItem, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range uniqueStrings(ids) {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []*model.CatalogItem{}, nil
	}
	return s.findMany(ctx, bson.M{"_id": bson.M{"$in": oids}})
}

func (s *MongoStore) ListItems(ctx context.Context) ([]*model.CatalogItem, error) {
	return s.findMany(ctx, bson.M{})
}

func (s *MongoStore) InsertItem(ctx context.Context, item *model.CatalogItem) (string, error) {
	doc := itemDocument{
		Name:           item.Name,
		CanonicalPath:  item.CanonicalPath,
		Type:           item.Type,
		CreditPrice:    item.CreditPrice,
		DucatPrice:     item.DucatPrice,
		Image:          item.Image,
		Link:           item.Link,
		OfferingDates:  uniqueStrings(nonNil(item.OfferingDates)),
		Likes:          nonNil(item.LikeRefs),
		Reviews:        nonNil(item.ReviewRefs),
		WishlistTokens: uniqueStrings(nonNil(item.WishlistTokens)),
	}
	doc.WishlistCount = len(doc.WishlistTokens)
	if item.CanonicalPath != "" {
		doc.CanonicalSegment = canonical.SegmentOf(item.CanonicalPath)
	}

	res, err := s.items.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return "", fmt.Errorf("%w: %s", ErrDuplicateCanonicalPath, item.CanonicalPath)
	}
	if err != nil {
		return "", fmt.Errorf("failed to insert item: %w", err)
	}
	oid, _ := res.InsertedID.(primitive.ObjectID)
	return oid.Hex(), nil
}

func (s *MongoStore) AppendOfferingDate(ctx context.Context, id, date string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.items.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$addToSet": bson.M{"offering_dates": date}})
	if err != nil {
		return fmt.Errorf("failed to append offering date: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *MongoStore) SetCanonicalPath(ctx context.Context, id, path string) (bool, error) {
	oid, err := objectID(id)
	if err != nil {
		return false, err
	}
	filter := missingPathFilter()
	filter["_id"] = oid
	update := bson.M{"$set": bson.M{
		"canonical_path":    path,
		"canonical_segment": canonical.SegmentOf(path),
	}}
	res, err := s.items.UpdateOne(ctx, filter, update)
	if mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("%w: %s", ErrDuplicateCanonicalPath, path)
	}
	if err != nil {
		return false, fmt.Errorf("failed to set canonical path: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// wishlistUpdate recomputes wishlist_count from the token set in the same write.
func wishlistUpdate(tokens bson.M) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{"wishlist_tokens": tokens}}},
		{{Key: "$set", Value: bson.M{"wishlist_count": bson.M{"$size": "$wishlist_tokens"}}}},
	}
}

func currentTokens() bson.M {
	return bson.M{"$ifNull": bson.A{"$wishlist_tokens", bson.A{}}}
}

func (s *MongoStore) updateWishlist(ctx context.Context, id string, tokens bson.M) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.items.UpdateOne(ctx, bson.M{"_id": oid}, wishlistUpdate(tokens))
	if err != nil {
		return fmt.Errorf("failed to update wishlist: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *MongoStore) AddWishlistToken(ctx context.Context, id, token string) error {
	return s.updateWishlist(ctx, id, bson.M{"$setUnion": bson.A{currentTokens(), bson.A{token}}})
}

func (s *MongoStore) RemoveWishlistToken(ctx context.Context, id, token string) error {
	return s.updateWishlist(ctx, id, bson.M{"$setDifference": bson.A{currentTokens(), bson.A{token}}})
}

func (s *MongoStore) ReplaceWishlistToken(ctx context.Context, oldToken, newToken string) (int, error) {
	replaced := bson.M{"$setUnion": bson.A{
		bson.M{"$setDifference": bson.A{currentTokens(), bson.A{oldToken}}},
		bson.A{newToken},
	}}
	res, err := s.items.UpdateMany(ctx, bson.M{"wishlist_tokens": oldToken}, wishlistUpdate(replaced))
	if err != nil {
		return 0, fmt.Errorf("failed to replace wishlist token: %w", err)
	}
	return int(res.ModifiedCount), nil
}

type unknownDocument struct {
	UniqueName     string    `bson:"unique_name"`
	Item           string    `bson:"item"`
	Ducats         int       `bson:"ducats"`
	Credits        int       `bson:"credits"`
	FirstSeenAt    time.Time `bson:"first_seen_at"`
	LastSeenAt     time.Time `bson:"last_seen_at"`
	IsSuspectedNew bool      `bson:"is_suspected_new"`
}

// UpsertSighting keys on the raw path and keeps the first-seen time and suspicion flag sticky.
func (s *MongoStore) UpsertSighting(ctx context.Context, sg model.Sighting) error {
	set := bson.M{
		"item":         sg.DisplayName,
		"ducats":       sg.Ducats,
		"credits":      sg.Credits,
		"last_seen_at": sg.SeenAt,
	}
	setOnInsert := bson.M{"first_seen_at": sg.SeenAt}
	if sg.IsNewCandidate {
		set["is_suspected_new"] = true
	} else {
		setOnInsert["is_suspected_new"] = false
	}

	update := bson.M{"$set": set, "$setOnInsert": setOnInsert}
	_, err := s.unknown.UpdateOne(ctx, bson.M{"unique_name": sg.CanonicalPathRaw}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert unknown item: %w", err)
	}
	return nil
}

func (s *MongoStore) ListUnknown(ctx context.Context) ([]model.UnknownItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_seen_at", Value: -1}})
	cur, err := s.unknown.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query unknown items: %w", err)
	}
	defer cur.Close(ctx)

	var docs []unknownDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode unknown items: %w", err)
	}
	out := make([]model.UnknownItem, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.UnknownItem{
			CanonicalPathRaw: d.UniqueName,
			DisplayName:      d.Item,
			Ducats:           d.Ducats,
			Credits:          d.Credits,
			FirstSeenAt:      d.FirstSeenAt,
			LastSeenAt:       d.LastSeenAt,
			IsSuspectedNew:   d.IsSuspectedNew,
		})
	}
	return out, nil
}

type statusDocument struct {
	ID           string    `bson:"_id"`
	IsActive     bool      `bson:"is_active"`
	Activation   time.Time `bson:"activation"`
	Expiry       time.Time `bson:"expiry"`
	Location     string    `bson:"location"`
	InventoryIDs []string  `bson:"inventory"`
	Source       string    `bson:"source,omitempty"`
	UpdatedAt    time.Time `bson:"updated_at"`
	Notified     time.Time `bson:"notified_activation"`
}

func (s *MongoStore) GetStatus(ctx context.Context) (*model.VendorStatus, error) {
	var doc statusDocument
	err := s.status.FindOne(ctx, bson.M{"_id": statusDocumentID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return &model.VendorStatus{
		IsActive:     doc.IsActive,
		Activation:   doc.Activation,
		Expiry:       doc.Expiry,
		Location:     doc.Location,
		InventoryIDs: nonNil(doc.InventoryIDs),
		Source:       model.Source(doc.Source),
		UpdatedAt:    doc.UpdatedAt,

		NotifiedActivation: doc.Notified,
	}, nil
}

func (s *MongoStore) UpsertStatus(ctx context.Context, st model.VendorStatus) error {
	doc := statusDocument{
		ID:           statusDocumentID,
		IsActive:     st.IsActive,
		Activation:   st.Activation,
		Expiry:       st.Expiry,
		Location:     st.Location,
		InventoryIDs: nonNil(st.InventoryIDs),
		Source:       string(st.Source),
		UpdatedAt:    st.UpdatedAt,
		Notified:     st.NotifiedActivation,
	}
	_, err := s.status.ReplaceOne(ctx, bson.M{"_id": statusDocumentID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert status: %w", err)
	}
	return nil
}

type pushTokenDocument struct {
	Token     string    `bson:"token"`
	DeviceID  string    `bson:"device_id,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	LastUsed  time.Time `bson:"last_used"`
	IsActive  bool      `bson:"is_active"`
}

func (s *MongoStore) UpsertToken(ctx context.Context, token, deviceID string, now time.Time) (*model.PushToken, error) {
	update := bson.M{
		"$set":         bson.M{"device_id": deviceID, "last_used": now, "is_active": true},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc pushTokenDocument
	if err := s.tokens.FindOneAndUpdate(ctx, bson.M{"token": token}, update, opts).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to upsert push token: %w", err)
	}
	return &model.PushToken{
		Token:     doc.Token,
		DeviceID:  doc.DeviceID,
		CreatedAt: doc.CreatedAt,
		LastUsed:  doc.LastUsed,
		IsActive:  doc.IsActive,
	}, nil
}

func (s *MongoStore) DeleteToken(ctx context.Context, token string) error {
	if _, err := s.tokens.DeleteOne(ctx, bson.M{"token": token}); err != nil {
		return fmt.Errorf("failed to delete push token: %w", err)
	}
	return nil
}

func (s *MongoStore) DeactivateToken(ctx context.Context, token string) error {
	_, err := s.tokens.UpdateOne(ctx, bson.M{"token": token}, bson.M{"$set": bson.M{"is_active": false}})
	if err != nil {
		return fmt.Errorf("failed to deactivate push token: %w", err)
	}
	return nil
}

func (s *MongoStore) ActiveTokens(ctx context.Context) ([]string, error) {
	values, err := s.tokens.Distinct(ctx, "token", bson.M{"is_active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list push tokens: %w", err)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if t, ok := v.(string); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MongoStore) DeleteInactiveTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"is_active": false,
		"last_used": bson.M{"$lt": cutoff},
	}
	result, err := s.tokens.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete inactive push tokens: %w", err)
	}
	return result.DeletedCount, nil
}

// existingItem parses id and verifies the item exists.
func (s *MongoStore) existingItem(ctx context.Context, id string) (primitive.ObjectID, error) {
	oid, err := objectID(id)
	if err != nil {
		return oid, err
	}
	n, err := s.items.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return oid, fmt.Errorf("failed to check item: %w", err)
	}
	if n == 0 {
		return oid, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return oid, nil
}

type likeDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ItemOID   primitive.ObjectID `bson:"item_oid"`
	UID       string             `bson:"uid"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (d likeDocument) toModel() model.Like {
	return model.Like{ID: d.ID.Hex(), ItemID: d.ItemOID.Hex(), UID: d.UID, CreatedAt: d.CreatedAt}
}

// InsertLike upserts the like and lists its id on the item.
func (s *MongoStore) InsertLike(ctx context.Context, itemID, uid string, now time.Time) (*model.Like, error) {
	oid, err := s.existingItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	filter := bson.M{"item_oid": oid, "uid": uid}
	update := bson.M{"$setOnInsert": bson.M{"created_at": now}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc likeDocument
	if err := s.likes.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to insert like: %w", err)
	}
	if _, err := s.items.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$addToSet": bson.M{"likes": doc.ID.Hex()}}); err != nil {
		return nil, fmt.Errorf("failed to link like to item: %w", err)
	}
	l := doc.toModel()
	return &l, nil
}

func (s *MongoStore) DeleteLike(ctx context.Context, itemID, uid string) (bool, error) {
	oid, err := s.existingItem(ctx, itemID)
	if err != nil {
		return false, err
	}
	var doc likeDocument
	err = s.likes.FindOneAndDelete(ctx, bson.M{"item_oid": oid, "uid": uid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete like: %w", err)
	}
	if _, err := s.items.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$pull": bson.M{"likes": doc.ID.Hex()}}); err != nil {
		return false, fmt.Errorf("failed to unlink like from item: %w", err)
	}
	return true, nil
}

func (s *MongoStore) ListLikes(ctx context.Context, itemID string) ([]model.Like, error) {
	oid, err := s.existingItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	cur, err := s.likes.Find(ctx, bson.M{"item_oid": oid}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query likes: %w", err)
	}
	defer cur.Close(ctx)

	var docs []likeDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode likes: %w", err)
	}
	out := make([]model.Like, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

type reviewDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ItemOID     primitive.ObjectID `bson:"item_oid"`
	User        string             `bson:"user"`
	Content     string             `bson:"content"`
	Date        string             `bson:"date"`
	Time        string             `bson:"time"`
	UID         string             `bson:"uid"`
	ReportCount int                `bson:"reportCount"`
}

func (d reviewDocument) toModel() model.Review {
	return model.Review{
		ID:          d.ID.Hex(),
		ItemID:      d.ItemOID.Hex(),
		User:        d.User,
		Content:     d.Content,
		Date:        d.Date,
		Time:        d.Time,
		UID:         d.UID,
		ReportCount: d.ReportCount,
	}
}

// InsertReview stores the review and lists its id on the item.
func (s *MongoStore) InsertReview(ctx context.Context, r model.Review) (*model.Review, error) {
	oid, err := s.existingItem(ctx, r.ItemID)
	if err != nil {
		return nil, err
	}
	doc := reviewDocument{
		ItemOID: oid,
		User:    r.User,
		Content: r.Content,
		Date:    r.Date,
		Time:    r.Time,
		UID:     r.UID,
	}
	res, err := s.reviews.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrReviewExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert review: %w", err)
	}
	doc.ID, _ = res.InsertedID.(primitive.ObjectID)
	if _, err := s.items.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$addToSet": bson.M{"reviews": doc.ID.Hex()}}); err != nil {
		return nil, fmt.Errorf("failed to link review to item: %w", err)
	}
	out := doc.toModel()
	return &out, nil
}

func (s *MongoStore) UpdateReview(ctx context.Context, id, uid string, edit model.ReviewEdit) (*model.Review, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	update := bson.M{"$set": bson.M{"content": edit.Content, "date": edit.Date, "time": edit.Time}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc reviewDocument
	err = s.reviews.FindOneAndUpdate(ctx, bson.M{"_id": oid, "uid": uid}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update review: %w", err)
	}
	out := doc.toModel()
	return &out, nil
}

func (s *MongoStore) DeleteReview(ctx context.Context, id, uid string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	var doc reviewDocument
	err = s.reviews.FindOneAndDelete(ctx, bson.M{"_id": oid, "uid": uid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete review: %w", err)
	}
	if _, err := s.items.UpdateOne(ctx, bson.M{"_id": doc.ItemOID}, bson.M{"$pull": bson.M{"reviews": id}}); err != nil {
		return false, fmt.Errorf("failed to unlink review from item: %w", err)
	}
	return true, nil
}

func (s *MongoStore) ReportReview(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	res, err := s.reviews.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"reportCount": 1}})
	if err != nil {
		return false, fmt.Errorf("failed to report review: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (s *MongoStore) ListReviews(ctx context.Context, itemID string) ([]model.Review, error) {
	oid, err := s.existingItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "time", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := s.reviews.Find(ctx, bson.M{"item_oid": oid}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer cur.Close(ctx)

	var docs []reviewDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}
	out := make([]model.Review, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

type marketPointDocument struct {
	Datetime string  `bson:"datetime"`
	Volume   int     `bson:"volume"`
	AvgPrice float64 `bson:"avg_price"`
	ModRank  *int    `bson:"mod_rank,omitempty"`
}

type marketDocument struct {
	ItemOID     primitive.ObjectID    `bson:"item_oid"`
	Data        []marketPointDocument `bson:"data"`
	LastUpdated time.Time             `bson:"last_updated"`
}

func (s *MongoStore) UpsertMarketData(ctx context.Context, m model.MarketData) error {
	oid, err := objectID(m.ItemID)
	if err != nil {
		return err
	}
	doc := marketDocument{ItemOID: oid, Data: make([]marketPointDocument, 0, len(m.Data)), LastUpdated: m.LastUpdated}
	for _, p := range m.Data {
		doc.Data = append(doc.Data, marketPointDocument(p))
	}
	_, err = s.markets.ReplaceOne(ctx, bson.M{"item_oid": oid}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert market data: %w", err)
	}
	return nil
}

func (s *MongoStore) GetMarketData(ctx context.Context, itemID string) (*model.MarketData, error) {
	oid, err := primitive.ObjectIDFromHex(itemID)
	if err != nil {
		return nil, nil
	}
	var doc marketDocument
	err = s.markets.FindOne(ctx, bson.M{"item_oid": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market data: %w", err)
	}
	m := &model.MarketData{ItemID: itemID, Data: make([]model.MarketPoint, 0, len(doc.Data)), LastUpdated: doc.LastUpdated}
	for _, p := range doc.Data {
		m.Data = append(m.Data, model.MarketPoint(p))
	}
	return m, nil
}

// GetStats returns document counts and the items collection size.
func (s *MongoStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"backend": "mongodb", "status": "connected"}

	counts := map[string]*mongo.Collection{
		"total_items":   s.items,
		"unknown_items": s.unknown,
		"push_tokens":   s.tokens,
		"likes":         s.likes,
		"reviews":       s.reviews,
		"market_items":  s.markets,
	}
	for key, coll := range counts {
		n, err := coll.CountDocuments(ctx, bson.M{})
		if err != nil {
			return stats, err
		}
		stats[key] = n
	}
	missing, err := s.items.CountDocuments(ctx, missingPathFilter())
	if err != nil {
		return stats, err
	}
	stats["items_missing_canonical_path"] = missing

	var collStats bson.M
	if err := s.db.RunCommand(ctx, bson.D{{Key: "collStats", Value: itemsCollection}}).Decode(&collStats); err == nil {
		switch size := collStats["size"].(type) {
		case int64:
			stats["db_size_bytes"] = size
		case int32:
			stats["db_size_bytes"] = int64(size)
		}
	}
	return stats, nil
}

// Close closes the MongoDB connection.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)

// Package mongo connects to the MongoDB deployment used by the audit sink
// (audit.MongoStorage).
//
//	client, err := mongo.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	storage := audit.NewMongoStorage(mongo.AuditCollection(client, cfg))
package mongo

package userrecords_test

import (
	"github.com/CreativeUnicorns/userrecords"
	"github.com/CreativeUnicorns/userrecords/cache"
	"github.com/CreativeUnicorns/userrecords/encryption"
	"github.com/CreativeUnicorns/userrecords/storage"
)

var (
	_ userrecords.Storage = (*storage.MemoryStorage)(nil)
	_ userrecords.Storage = (*storage.SQLStorage)(nil)
	_ userrecords.Storage = (*storage.GormStorage)(nil)

	_ userrecords.Cache = (*cache.MemoryCache)(nil)
	_ userrecords.Cache = (*cache.RedisCache)(nil)

	_ userrecords.Encryptor = (*userrecords.EncryptionAdapter)(nil)
	_ userrecords.Encryptor = (*encryption.Manager)(nil)

	_ userrecords.LevelLogger = userrecords.NewDefaultLogger()
)

package db

import (
	"embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/hongbao-labs/packetd/internal/core/domain"
	"github.com/hongbao-labs/packetd/internal/core/ports"
	badgerdb "github.com/hongbao-labs/packetd/internal/infrastructure/db/badger"
	sqlitedb "github.com/hongbao-labs/packetd/internal/infrastructure/db/sqlite"
	watermilldb "github.com/hongbao-labs/packetd/internal/infrastructure/db/watermill"
)

//go:embed sqlite/migration/*
var migrations embed.FS

var (
	eventStoreTypes = map[string]func(...interface{}) (domain.EventRepository, error){
		"badger":    badgerdb.NewEventRepository,
		"watermill": watermilldb.NewEventRepository,
	}
	packetStoreTypes = map[string]func(...interface{}) (domain.PacketRepository, error){
		"badger": badgerdb.NewPacketRepository,
		"sqlite": sqlitedb.NewPacketRepository,
	}
)

const (
	sqliteDbFile = "sqlite.db"
)

type ServiceConfig struct {
	EventStoreType string
	DataStoreType  string

	EventStoreConfig []interface{}
	DataStoreConfig  []interface{}
}

type service struct {
	eventStore  domain.EventRepository
	packetStore domain.PacketRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	eventStoreFactory, ok := eventStoreTypes[config.EventStoreType]
	if !ok {
		return nil, fmt.Errorf("event store type not supported")
	}
	packetStoreFactory, ok := packetStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	eventStore, err := eventStoreFactory(config.EventStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %s", err)
	}

	var packetStore domain.PacketRepository

	switch config.DataStoreType {
	case "badger":
		packetStore, err = packetStoreFactory(config.DataStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open packet store: %s", err)
		}
	case "sqlite":
		if len(config.DataStoreConfig) != 1 {
			return nil, fmt.Errorf("invalid data store config")
		}

		baseDir, ok := config.DataStoreConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory")
		}

		dbFile := filepath.Join(baseDir, sqliteDbFile)
		db, err := sqlitedb.OpenDb(dbFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %s", err)
		}

		driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init driver: %s", err)
		}

		source, err := iofs.New(migrations, "sqlite/migration")
		if err != nil {
			return nil, fmt.Errorf("failed to embed migrations: %s", err)
		}

		m, err := migrate.NewWithInstance("iofs", source, "packetdb", driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migration instance: %s", err)
		}

		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("failed to run migrations: %s", err)
		}

		packetStore, err = packetStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open packet store: %s", err)
		}
	}

	return &service{
		eventStore:  eventStore,
		packetStore: packetStore,
	}, nil
}

func (s *service) Events() domain.EventRepository {
	return s.eventStore
}

func (s *service) Packets() domain.PacketRepository {
	return s.packetStore
}

func (s *service) Close() {
	s.eventStore.Close()
	s.packetStore.Close()
}

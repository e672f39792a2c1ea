package accountstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is the Store backing production logins: a *sql.DB opened
// with the go-sql-driver/mysql driver, reconnecting on its own per the
// driver's default connection pooling (the original set
// MYSQL_OPT_RECONNECT explicitly; database/sql dials a fresh connection
// from the pool on demand instead).
type MySQLStore struct {
	db *sql.DB
	salt string
}

// DSNConfig names the fields OpenMySQLStore needs, mirroring the
// mysqlHost/mysqlUser/mysqlPass/mysqlDatabase/mysqlPort/mysqlSock
// configuration keys.
type DSNConfig struct {
	Host     string
	Port     int
	Socket   string
	User     string
	Password string
	Database string
}

// OpenMySQLStore opens a connection pool against cfg and returns a Store
// that hashes passwords with salt before querying, same as
// Database::getAccountInfo.
func OpenMySQLStore(cfg DSNConfig, salt string) (*MySQLStore, error) {
	dsn := buildDSN(cfg)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("accountstore: open mysql: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("accountstore: ping mysql: %w", err)
	}
	return &MySQLStore{db: db, salt: salt}, nil
}

func buildDSN(cfg DSNConfig) string {
	if cfg.Socket != "" {
		return fmt.Sprintf("%s:%s@unix(%s)/%s?parseTime=true", cfg.User, cfg.Password, cfg.Socket, cfg.Database)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}

// Close releases the underlying connection pool.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// GetAccount implements Store.
func (s *MySQLStore) GetAccount(ctx context.Context, email, password string) (Account, error) {
	hashed := HashPassword(s.salt, password)

	var account Account
	row := s.db.QueryRowContext(ctx,
		"SELECT `id`, `email`, `password`, `premium_ends_at` FROM `accounts` WHERE `email` = ? AND `password` = ?",
		email, hashed)

	var dbEmail, dbPassword string
	if err := row.Scan(&account.ID, &dbEmail, &dbPassword, &account.PremiumEnd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, nil
		}
		return Account{}, fmt.Errorf("accountstore: query account: %w", err)
	}
	account.Email = email
	account.Password = password

	characters, err := s.getCharacterList(ctx, account.ID)
	if err != nil {
		return Account{}, err
	}
	account.Characters = characters

	return account, nil
}

func (s *MySQLStore) getCharacterList(ctx context.Context, accountID uint16) ([]Character, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT `name`, `level`, `instance_id`, `instance_name`, `auto_reconnect` FROM `players` WHERE `account_id` = ?",
		accountID)
	if err != nil {
		return nil, fmt.Errorf("accountstore: query characters: %w", err)
	}
	defer rows.Close()

	var characters []Character
	for rows.Next() {
		var c Character
		var autoReconnect int
		if err := rows.Scan(&c.Name, &c.Level, &c.InstanceID, &c.InstanceName, &autoReconnect); err != nil {
			return nil, fmt.Errorf("accountstore: scan character: %w", err)
		}
		c.AutoReconnect = autoReconnect != 0
		characters = append(characters, c)
	}
	return characters, rows.Err()
}

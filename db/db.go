package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DB is the database struct.
type DB struct {
	db *sql.DB
}

const (
	//Accounts
	sqlCreateAccountsTable = `CREATE TABLE IF NOT EXISTS accounts(
                        id uuid NOT NULL PRIMARY KEY,
                        name varchar(200) UNIQUE NOT NULL,
                        origin_type varchar(50) NOT NULL,
                        origin_url varchar(500) NOT NULL,
                        ssl int default 1,
                        actor_oid varchar(500),
                        username varchar(200),
                        webfinger_id varchar(200),
                        client_key text,
                        client_secret text,
                        created_at timestamp default current_timestamp
                        )`
	sqlInsertAccount       = `INSERT INTO accounts(id, name, origin_type, origin_url, ssl, actor_oid, username, webfinger_id, client_key, client_secret, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectAccountByName = `SELECT id, name, origin_type, origin_url, ssl, actor_oid, username, webfinger_id, client_key, client_secret, created_at FROM accounts WHERE name = ?`
	sqlSelectAllAccounts   = `SELECT id, name, origin_type, origin_url, ssl, actor_oid, username, webfinger_id, client_key, client_secret, created_at FROM accounts ORDER BY name ASC`
	sqlUpdateAccountKeys   = `UPDATE accounts SET client_key = ?, client_secret = ? WHERE name = ?`

	//Queued commands, persisted as their property bags
	sqlCreateCommandsTable = `CREATE TABLE IF NOT EXISTS commands(
                        id integer NOT NULL PRIMARY KEY,
                        properties text NOT NULL,
                        created_at timestamp default current_timestamp
                        )`
	sqlInsertCommand     = `INSERT OR REPLACE INTO commands(id, properties, created_at) VALUES (?, ?, ?)`
	sqlDeleteCommand     = `DELETE FROM commands WHERE id = ?`
	sqlSelectAllCommands = `SELECT id, properties FROM commands ORDER BY id ASC`
)

// Account is a stored credential set binding a local account name to an
// origin and an identity on it.
type Account struct {
	Id           uuid.UUID
	Name         string
	OriginType   string
	OriginURL    string
	SSL          bool
	ActorOid     string
	Username     string
	WebFingerId  string
	ClientKey    string
	ClientSecret string
	CreatedAt    time.Time
}

// New opens the database file and prepares the schema.
func New(file string) (*DB, error) {
	sqlDb, err := sql.Open("sqlite", file)
	if err != nil {
		return nil, err
	}

	sqlDb.SetMaxOpenConns(25)
	sqlDb.SetMaxIdleConns(5)
	sqlDb.SetConnMaxLifetime(time.Hour)

	// Try to enable WAL2 mode, fall back to WAL if not supported
	var journalMode string
	err = sqlDb.QueryRow("PRAGMA journal_mode=WAL2").Scan(&journalMode)
	if err != nil || journalMode == "delete" {
		err = sqlDb.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode)
		if err != nil {
			log.Printf("Warning: Failed to enable WAL mode: %v", err)
		} else {
			log.Printf("Database journal mode: %s (WAL2 not supported, using WAL)", journalMode)
		}
	} else {
		log.Printf("Database journal mode: %s", journalMode)
	}

	sqlDb.Exec("PRAGMA synchronous = NORMAL")
	sqlDb.Exec("PRAGMA cache_size = -64000")
	sqlDb.Exec("PRAGMA temp_store = MEMORY")
	sqlDb.Exec("PRAGMA busy_timeout = 5000")
	sqlDb.Exec("PRAGMA foreign_keys = ON")
	sqlDb.Exec("PRAGMA auto_vacuum = INCREMENTAL")

	database := &DB{db: sqlDb}
	if err := database.createTables(); err != nil {
		sqlDb.Close()
		return nil, err
	}
	return database, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) createTables() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(sqlCreateAccountsTable); err != nil {
			return err
		}
		if _, err := tx.Exec(sqlCreateCommandsTable); err != nil {
			return err
		}
		return nil
	})
}

func (db *DB) CreateAccount(acc *Account) error {
	if acc.Id == uuid.Nil {
		acc.Id = uuid.New()
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now()
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertAccount,
			acc.Id.String(),
			acc.Name,
			acc.OriginType,
			acc.OriginURL,
			acc.SSL,
			acc.ActorOid,
			acc.Username,
			acc.WebFingerId,
			acc.ClientKey,
			acc.ClientSecret,
			acc.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadAccountByName(name string) (error, *Account) {
	row := db.db.QueryRow(sqlSelectAccountByName, name)
	acc, err := scanAccount(row.Scan)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	return nil, acc
}

func (db *DB) ReadAllAccounts() (error, *[]Account) {
	rows, err := db.db.Query(sqlSelectAllAccounts)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		acc, err := scanAccount(rows.Scan)
		if err != nil {
			return err, &accounts
		}
		accounts = append(accounts, *acc)
	}
	if err = rows.Err(); err != nil {
		return err, &accounts
	}
	return nil, &accounts
}

func scanAccount(scan func(dest ...any) error) (*Account, error) {
	var acc Account
	var idStr string
	err := scan(
		&idStr,
		&acc.Name,
		&acc.OriginType,
		&acc.OriginURL,
		&acc.SSL,
		&acc.ActorOid,
		&acc.Username,
		&acc.WebFingerId,
		&acc.ClientKey,
		&acc.ClientSecret,
		&acc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	acc.Id, _ = uuid.Parse(idStr)
	return &acc, nil
}

// UpdateAccountKeys persists newly registered OAuth client keys so a
// restart does not repeat the registration handshake.
func (db *DB) UpdateAccountKeys(name, clientKey, clientSecret string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateAccountKeys, clientKey, clientSecret, name)
		return err
	})
}

// SaveCommand persists a queued command's property bag.
func (db *DB) SaveCommand(commandId int64, properties map[string]string) error {
	encoded, err := json.Marshal(properties)
	if err != nil {
		return err
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertCommand, commandId, string(encoded), time.Now())
		return err
	})
}

func (db *DB) DeleteCommand(commandId int64) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteCommand, commandId)
		return err
	})
}

// ReadAllCommands returns the persisted property bags in creation
// order, for queue restoration on startup.
func (db *DB) ReadAllCommands() (error, *[]map[string]string) {
	rows, err := db.db.Query(sqlSelectAllCommands)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var bags []map[string]string
	for rows.Next() {
		var id int64
		var encoded string
		if err := rows.Scan(&id, &encoded); err != nil {
			return err, &bags
		}
		var bag map[string]string
		if err := json.Unmarshal([]byte(encoded), &bag); err != nil {
			log.Printf("Warning: Failed to parse command %d properties: %v", id, err)
			continue
		}
		bags = append(bags, bag)
	}
	if err = rows.Err(); err != nil {
		return err, &bags
	}
	return nil, &bags
}

// wrapTransaction runs the given function within a transaction.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	for {
		err = f(tx)
		if err != nil {
			serr, ok := err.(*sqlite.Error)
			if ok && serr.Code() == sqlitelib.SQLITE_BUSY {
				continue
			}
			log.Printf("error in transaction: %s", err)
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Printf("error committing transaction: %s", err)
			return err
		}
		break
	}
	return nil
}

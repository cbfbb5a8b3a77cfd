package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jaller94/andstatus/connector"
	"github.com/jaller94/andstatus/db"
	"github.com/jaller94/andstatus/domain"
	"github.com/jaller94/andstatus/service"
	"github.com/jaller94/andstatus/util"
)

func main() {

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Println("Configuration: ")
	fmt.Println(util.PrettyPrint(conf))

	database, err := db.New(conf.Conf.DatabaseFile)
	if err != nil {
		log.Fatalln(err)
	}
	defer database.Close()

	log.Println("Running database migrations...")
	if err := database.RunMigrations(); err != nil {
		log.Printf("Warning: Migration errors (may be normal if tables exist): %v", err)
	}

	registry := service.NewAccountRegistry()
	accountData, err := registerAccounts(database, registry, conf)
	if err != nil {
		log.Fatalln(err)
	}

	queue := service.NewCommandQueue()
	restoreQueue(database, queue)

	executor := service.NewExecutor(registry, 40)
	scheduler := service.NewScheduler(queue, executor, service.SchedulerConfig{
		Workers:        conf.Conf.Workers,
		RetryCeiling:   conf.Conf.RetryCeiling,
		CommandTimeout: time.Duration(conf.Conf.CommandTimeoutSec) * time.Second,
		PollInterval:   time.Duration(conf.Conf.QueuePollSec) * time.Second,
	})

	scheduler.Start(context.Background())

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	log.Println("Stopping scheduler")
	scheduler.Stop()
	reportResults(scheduler)
	persistQueue(database, queue)
	persistClientKeys(database, accountData)
}

// reportResults logs a summary of the commands finished during this run.
func reportResults(scheduler *service.Scheduler) {
	results := scheduler.RecentResults()
	if len(results) == 0 {
		return
	}
	failed := 0
	for _, cmd := range results {
		if cmd.Result.HasError() {
			failed++
			log.Printf("Result: %s for %s failed: %s", cmd.Command, cmd.AccountName, cmd.Result.ErrorMessage)
		}
	}
	log.Printf("Executed %d commands, %d failed", len(results), failed)
}

// registerAccounts builds a protocol adapter per stored account and
// returns the live connection data, keyed by account name, so keys
// learned at runtime can be saved back on shutdown.
func registerAccounts(database *db.DB, registry *service.AccountRegistry, conf *util.AppConfig) (map[string]*connector.ConnectionData, error) {
	err, accounts := database.ReadAllAccounts()
	if err != nil {
		return nil, fmt.Errorf("reading accounts: %w", err)
	}
	accountData := make(map[string]*connector.ConnectionData)
	for _, acc := range *accounts {
		originURL, err := url.Parse(acc.OriginURL)
		if err != nil {
			log.Printf("Skipping account %s: bad origin URL %q: %v", acc.Name, acc.OriginURL, err)
			continue
		}
		data := &connector.ConnectionData{
			OriginType: connector.OriginType(acc.OriginType),
			OriginURL:  originURL,
			AccountActor: domain.Actor{
				Oid:         acc.ActorOid,
				Username:    acc.Username,
				WebFingerID: acc.WebFingerId,
			},
			IsSSL:      acc.SSL,
			ClientKeys: connector.NewOAuthClientKeys(acc.ClientKey, acc.ClientSecret),
			HTTP: connector.NewClient(
				time.Duration(conf.Conf.HttpTimeoutSec)*time.Second,
				conf.Conf.RequestsPerSec,
				conf.Conf.UserAgent),
		}
		registry.Register(acc.Name, connector.NewConnection(data))
		accountData[acc.Name] = data
		log.Printf("Registered account %s (%s at %s)", acc.Name, acc.OriginType, acc.OriginURL)
	}
	return accountData, nil
}

// persistClientKeys saves OAuth client keys registered during this run
// so a restart does not repeat the registration handshake.
func persistClientKeys(database *db.DB, accountData map[string]*connector.ConnectionData) {
	for name, data := range accountData {
		key, secret := data.ClientKeys.Get()
		if key == "" || secret == "" {
			continue
		}
		err, acc := database.ReadAccountByName(name)
		if err != nil || (acc.ClientKey == key && acc.ClientSecret == secret) {
			continue
		}
		if err := database.UpdateAccountKeys(name, key, secret); err != nil {
			log.Printf("Warning: Failed to save client keys for %s: %v", name, err)
		}
	}
}

// restoreQueue reloads commands persisted at the previous shutdown.
func restoreQueue(database *db.DB, queue *service.CommandQueue) {
	err, bags := database.ReadAllCommands()
	if err != nil {
		log.Printf("Warning: Failed to read persisted commands: %v", err)
		return
	}
	restored := 0
	for _, bag := range *bags {
		cmd := service.CommandFromProperties(bag)
		if queue.Add(cmd) {
			restored++
		}
		database.DeleteCommand(cmd.CommandID)
	}
	if restored > 0 {
		log.Printf("Restored %d queued commands", restored)
	}
}

func persistQueue(database *db.DB, queue *service.CommandQueue) {
	saved := 0
	for _, cmd := range queue.Snapshot() {
		if err := database.SaveCommand(cmd.CommandID, cmd.ToProperties()); err != nil {
			log.Printf("Warning: Failed to persist command %d: %v", cmd.CommandID, err)
			continue
		}
		saved++
	}
	if saved > 0 {
		log.Printf("Persisted %d queued commands", saved)
	}
}

// Command admin manages professor accounts and the backend schema.
package main

import (
	"log"
	"os"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/user"
	emailsvc "github.com/collegepense/pense/services/email"
	logsvc "github.com/collegepense/pense/services/logger"
	"github.com/collegepense/pense/storage/database"
	sqlxrepos "github.com/collegepense/pense/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
	if err = db.Ping(); err != nil {
		logger.Fatal(err.Error(), err)
	}

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.RegisterValidators(validate, translator)

	cli := commandLine{
		db:     db.DB,
		usrSvc: user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, validate, translator, conf),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("command failed: "+err.Error(), err)
		}
		os.Exit(1)
	}
}

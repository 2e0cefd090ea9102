package main

import (
	"context"
	"fmt"
	"os"

	appconfig "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/app-config"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

//nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cntx = context.Background()
	cfg  *appconfig.Config
)

var (
	initCommand = cli.Command{
		Name:   "init",
		Usage:  "Initialize the wallet with an encryption password",
		Action: initWallet,
		Flags:  []cli.Flag{&passwordFlag, &privateKeyFlag},
	}
	identityCommand = cli.Command{
		Name:   "identity",
		Usage:  "Shows the identity key to share with your contacts",
		Action: identity,
	}
	fundCommand = cli.Command{
		Name:   "fund",
		Usage:  "Credits the wallet with a funding output, for development only",
		Action: fund,
		Flags:  []cli.Flag{&amountFlag, &passwordFlag},
	}
	balanceCommand = cli.Command{
		Name:   "balance",
		Usage:  "Shows the balance of the wallet",
		Action: balance,
		Flags:  []cli.Flag{&passwordFlag},
	}
	sendCommand = cli.Command{
		Name:   "send",
		Usage:  "Send a voicemail to a peer, or to yourself if no recipient is given",
		Action: send,
		Flags:  []cli.Flag{&toFlag, &audioFlag, &noteFlag, &amountFlag, &passwordFlag},
	}
	inboxCommand = cli.Command{
		Name:   "inbox",
		Usage:  "Lists the received voicemails",
		Action: listVoicemails(inboxView),
		Flags:  []cli.Flag{&passwordFlag},
	}
	sentCommand = cli.Command{
		Name:   "sent",
		Usage:  "Lists the sent voicemails",
		Action: listVoicemails(sentView),
		Flags:  []cli.Flag{&passwordFlag},
	}
	archivedCommand = cli.Command{
		Name:   "archived",
		Usage:  "Lists the archived voicemails",
		Action: listVoicemails(archivedView),
		Flags:  []cli.Flag{&passwordFlag},
	}
	exportCommand = cli.Command{
		Name:   "export",
		Usage:  "Writes the audio of a voicemail to file",
		Action: export,
		Flags:  []cli.Flag{&outpointFlag, &outputFlag, &passwordFlag},
	}
	redeemCommand = cli.Command{
		Name:   "redeem",
		Usage:  "Redeems the value of a received voicemail and archives it",
		Action: redeem,
		Flags:  []cli.Flag{&outpointFlag, &passwordFlag},
	}
	forgetCommand = cli.Command{
		Name:   "forget",
		Usage:  "Spends a voicemail token without keeping any copy",
		Action: forget,
		Flags:  []cli.Flag{&outpointFlag, &passwordFlag},
	}
	syncCommand = cli.Command{
		Name:   "sync",
		Usage:  "Fetches the pending notifications from the relay",
		Action: sync,
		Flags:  []cli.Flag{&passwordFlag},
	}
	contactsCommand = cli.Command{
		Name:  "contacts",
		Usage: "Manage your contacts",
		Subcommands: []*cli.Command{
			{
				Name:   "add",
				Usage:  "Adds a contact",
				Action: addContact,
				Flags:  []cli.Flag{&nameFlag, &identityKeyFlag, &passwordFlag},
			},
			{
				Name:   "list",
				Usage:  "Lists the contacts",
				Action: listContacts,
				Flags:  []cli.Flag{&passwordFlag},
			},
			{
				Name:   "remove",
				Usage:  "Removes a contact",
				Action: removeContact,
				Flags:  []cli.Flag{&outpointFlag, &passwordFlag},
			},
		},
	}
	tasksCommand = cli.Command{
		Name:  "tasks",
		Usage: "Manage your todo list",
		Subcommands: []*cli.Command{
			{
				Name:   "add",
				Usage:  "Adds a task locking the given bounty",
				Action: addTask,
				Flags:  []cli.Flag{&descriptionFlag, &amountFlag, &passwordFlag},
			},
			{
				Name:   "list",
				Usage:  "Lists the open tasks",
				Action: listTasks,
				Flags:  []cli.Flag{&passwordFlag},
			},
			{
				Name:   "complete",
				Usage:  "Completes a task releasing its bounty",
				Action: completeTask,
				Flags:  []cli.Flag{&outpointFlag, &passwordFlag},
			},
		},
	}
)

var (
	datadirFlag = &cli.StringFlag{
		Name:    "datadir",
		Usage:   "Specify the data directory",
		EnvVars: []string{"VOICEMAIL_DATADIR"},
	}
	passwordFlag = cli.StringFlag{
		Name:     "password",
		Usage:    "password to unlock the wallet",
		Required: false,
		Hidden:   true,
	}
	privateKeyFlag = cli.StringFlag{
		Name:  "prvkey",
		Usage: "optional, hex private key to encrypt",
	}
	amountFlag = cli.Uint64Flag{
		Name:     "amount",
		Usage:    "amount in sats",
		Required: true,
	}
	toFlag = cli.StringFlag{
		Name:  "to",
		Usage: "identity key or contact name of the recipient",
	}
	audioFlag = cli.StringFlag{
		Name:     "audio",
		Usage:    "path of the audio file to send",
		Required: true,
	}
	noteFlag = cli.StringFlag{
		Name:  "note",
		Usage: "optional text note attached to the voicemail",
	}
	outpointFlag = cli.StringFlag{
		Name:     "outpoint",
		Usage:    "outpoint of the token, in the form txid.vout",
		Required: true,
	}
	outputFlag = cli.StringFlag{
		Name:     "out",
		Usage:    "destination file",
		Required: true,
	}
	nameFlag = cli.StringFlag{
		Name:     "name",
		Usage:    "name of the contact",
		Required: true,
	}
	identityKeyFlag = cli.StringFlag{
		Name:     "key",
		Usage:    "identity key of the contact",
		Required: true,
	}
	descriptionFlag = cli.StringFlag{
		Name:     "description",
		Usage:    "description of the task",
		Required: true,
	}
)

func main() {
	app := cli.NewApp()

	app.Version = fmt.Sprintf("%s (%s, %s)", version, commit, date)
	app.Name = "vmail"
	app.Usage = "peer to peer voicemail command line interface"
	app.Commands = append(
		app.Commands,
		&initCommand,
		&identityCommand,
		&fundCommand,
		&balanceCommand,
		&sendCommand,
		&inboxCommand,
		&sentCommand,
		&archivedCommand,
		&exportCommand,
		&redeemCommand,
		&forgetCommand,
		&syncCommand,
		&contactsCommand,
		&tasksCommand,
	)
	app.Flags = []cli.Flag{datadirFlag}

	app.Before = func(ctx *cli.Context) error {
		if datadir := ctx.String("datadir"); len(datadir) > 0 {
			viper.Set(config.Datadir, cleanAndExpandPath(datadir))
		}
		loaded, err := config.LoadConfig()
		if err != nil {
			return err
		}
		log.SetLevel(loaded.LogLevel)

		cfg, err = appconfig.New(loaded)
		return err
	}
	app.After = func(ctx *cli.Context) error {
		if cfg != nil {
			cfg.Close()
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

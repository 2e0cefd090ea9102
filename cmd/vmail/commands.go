package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/application"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/domain"
	"github.com/urfave/cli/v2"
)

type view int

const (
	inboxView view = iota
	sentView
	archivedView
)

type voicemailInfo struct {
	Outpoint         string `json:"outpoint"`
	Sender           string `json:"sender"`
	Recipient        string `json:"recipient,omitempty"`
	Timestamp        string `json:"timestamp"`
	TimestampUnknown bool   `json:"timestamp_unknown,omitempty"`
	Note             string `json:"note,omitempty"`
	AudioSize        int    `json:"audio_size"`
	Amount           uint64 `json:"amount"`
	Stage            string `json:"stage"`
}

type contactInfo struct {
	Outpoint    string `json:"outpoint"`
	Name        string `json:"name"`
	IdentityKey string `json:"identity_key"`
	CreatedAt   string `json:"created_at"`
}

type taskInfo struct {
	Outpoint    string `json:"outpoint"`
	Description string `json:"description"`
	Bounty      uint64 `json:"bounty"`
}

func initWallet(ctx *cli.Context) error {
	wallet, err := cfg.Wallet()
	if err != nil {
		return err
	}
	if wallet.IsInitialized() {
		return cli.Exit("wallet already initialized", 1)
	}

	password := ctx.String("password")
	if len(password) <= 0 {
		password = cfg.WalletPassword
	}
	if len(password) <= 0 {
		pwd, err := readNewPassword()
		if err != nil {
			return err
		}
		password = string(pwd)
	}
	if len(password) <= 0 {
		return cli.Exit("password cannot be empty", 1)
	}

	if _, err := wallet.Create(cntx, password, ctx.String("prvkey")); err != nil {
		return err
	}
	identity, err := wallet.IdentityKey(cntx)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"identity_key": identity})
}

func identity(ctx *cli.Context) error {
	wallet, err := cfg.Wallet()
	if err != nil {
		return err
	}
	key, err := wallet.IdentityKey(cntx)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"identity_key": key})
}

func fund(ctx *cli.Context) error {
	if _, err := getAppService(ctx); err != nil {
		return err
	}
	wallet, err := cfg.Wallet()
	if err != nil {
		return err
	}
	funding, err := wallet.Fund(cntx, ctx.Uint64("amount"))
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"outpoint": funding.String()})
}

func balance(ctx *cli.Context) error {
	if _, err := getAppService(ctx); err != nil {
		return err
	}
	wallet, err := cfg.Wallet()
	if err != nil {
		return err
	}
	amount, err := wallet.Balance(cntx)
	if err != nil {
		return err
	}
	return printJSON(map[string]uint64{"balance": amount})
}

func send(ctx *cli.Context) error {
	svc, err := getAppService(ctx)
	if err != nil {
		return err
	}

	audio, err := os.ReadFile(cleanAndExpandPath(ctx.String("audio")))
	if err != nil {
		return fmt.Errorf("failed to read audio file: %s", err)
	}
	recipient, err := resolveRecipient(svc, ctx.String("to"))
	if err != nil {
		return err
	}

	res, err := svc.Send(cntx, application.SendIntent{
		Recipient: recipient,
		Audio:     audio,
		Note:      ctx.String("note"),
		Satoshis:  ctx.Uint64("amount"),
	})
	if err != nil {
		return err
	}

	out := map[string]string{
		"txid":     res.Txid,
		"outpoint": res.Outpoint.String(),
		"stage":    res.Lifecycle.Stage.String(),
	}
	if res.SentCopy != nil {
		out["sent_copy"] = res.SentCopy.String()
	}
	return printJSON(out)
}

func listVoicemails(v view) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		svc, err := getAppService(ctx)
		if err != nil {
			return err
		}
		voicemails, err := fetchVoicemails(svc, v)
		if err != nil {
			return err
		}

		list := make([]voicemailInfo, 0, len(voicemails))
		for _, vm := range voicemails {
			list = append(list, voicemailInfo{
				Outpoint:         vm.Outpoint.String(),
				Sender:           vm.Sender,
				Recipient:        vm.Recipient,
				Timestamp:        vm.Timestamp.Format(time.RFC3339),
				TimestampUnknown: vm.TimestampUnknown,
				Note:             vm.Note,
				AudioSize:        len(vm.Audio),
				Amount:           vm.Satoshis,
				Stage:            vm.Lifecycle.Stage.String(),
			})
		}
		return printJSON(list)
	}
}

func export(ctx *cli.Context) error {
	svc, err := getAppService(ctx)
	if err != nil {
		return err
	}
	outpoint, err := domain.ParseOutpoint(ctx.String("outpoint"))
	if err != nil {
		return err
	}

	for _, v := range []view{inboxView, sentView, archivedView} {
		voicemails, err := fetchVoicemails(svc, v)
		if err != nil {
			return err
		}
		for _, vm := range voicemails {
			if vm.Outpoint != outpoint {
				continue
			}
			path := cleanAndExpandPath(ctx.String("out"))
			if err := os.WriteFile(path, vm.Audio, 0644); err != nil {
				return err
			}
			return printJSON(map[string]string{"file": path})
		}
	}
	return fmt.Errorf("voicemail %s not found", outpoint)
}

func redeem(ctx *cli.Context) error {
	svc, err := getAppService(ctx)
	if err != nil {
		return err
	}
	outpoint, err := domain.ParseOutpoint(ctx.String("outpoint"))
	if err != nil {
		return err
	}
	archived, err := svc.RedeemAndArchive(cntx, outpoint)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"archived": archived.String()})
}

func forget(ctx *cli.Context) error {
	svc, err := getAppService(ctx)
	if err != nil {
		return err
	}
	outpoint, err := domain.ParseOutpoint(ctx.String("outpoint"))
	if err != nil {
		return err
	}
	return svc.Forget(cntx, outpoint)
}

func sync(ctx *cli.Context) error {
	svc, err := getAppService(ctx)
	if err != nil {
		return err
	}
	absorbed, err := svc.SyncInbox(cntx)
	if err != nil {
		return err
	}
	return printJSON(map[string]int{"received": absorbed})
}

func addContact(ctx *cli.Context) error {
	svc, err := getAppService(ctx)
	if err != nil {
		return err
	}
	outpoint, err := svc.AddContact(cntx, ctx.String("name"), ctx.String("key"))
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"outpoint": outpoint.String()})
}

func listContacts(ctx *cli.Context) error {
	svc, err := getAppService(ctx)
	if err != nil {
		return err
	}
	contacts, err := svc.Contacts(cntx)
	if err != nil {
		return err
	}
	list := make([]contactInfo, 0, len(contacts))
	for _, c := range contacts {
		list = append(list, contactInfo{
			Outpoint:    c.Outpoint.String(),
			Name:        c.Name,
			IdentityKey: c.IdentityKey,
			CreatedAt:   c.CreatedAt.Format(time.RFC3339),
		})
	}
	return printJSON(list)
}

func removeContact(ctx *cli.Context) error {
	svc, err := getAppService(ctx)
	if err != nil {
		return err
	}
	outpoint, err := domain.ParseOutpoint(ctx.String("outpoint"))
	if err != nil {
		return err
	}
	return svc.RemoveContact(cntx, outpoint)
}

func addTask(ctx *cli.Context) error {
	svc, err := getAppService(ctx)
	if err != nil {
		return err
	}
	outpoint, err := svc.AddTask(cntx, ctx.String("description"), ctx.Uint64("amount"))
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"outpoint": outpoint.String()})
}

func listTasks(ctx *cli.Context) error {
	svc, err := getAppService(ctx)
	if err != nil {
		return err
	}
	tasks, err := svc.Tasks(cntx)
	if err != nil {
		return err
	}
	list := make([]taskInfo, 0, len(tasks))
	for _, t := range tasks {
		list = append(list, taskInfo{
			Outpoint:    t.Outpoint.String(),
			Description: t.Description,
			Bounty:      t.Bounty(),
		})
	}
	return printJSON(list)
}

func completeTask(ctx *cli.Context) error {
	svc, err := getAppService(ctx)
	if err != nil {
		return err
	}
	outpoint, err := domain.ParseOutpoint(ctx.String("outpoint"))
	if err != nil {
		return err
	}
	return svc.CompleteTask(cntx, outpoint)
}

func fetchVoicemails(svc application.Service, v view) ([]*domain.Voicemail, error) {
	switch v {
	case sentView:
		return svc.Sent(cntx)
	case archivedView:
		return svc.Archived(cntx)
	default:
		return svc.Inbox(cntx)
	}
}

// resolveRecipient accepts either an identity key or the name of a contact.
func resolveRecipient(svc application.Service, to string) (string, error) {
	to = strings.TrimSpace(to)
	if len(to) <= 0 || to == domain.SelfCounterparty || isIdentityKey(to) {
		return to, nil
	}

	contacts, err := svc.Contacts(cntx)
	if err != nil {
		return "", err
	}
	for _, c := range contacts {
		if strings.EqualFold(c.Name, to) {
			return c.IdentityKey, nil
		}
	}
	return "", fmt.Errorf("recipient %s is neither an identity key nor a contact", to)
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/beanbot/backend/internal/audit"
	"github.com/beanbot/backend/internal/models"
)

const (
	ParseModeMarkdownV2 = "MarkdownV2"

	startMessage = "Hi! I'm Beanbot. I can help you keep track of your financial transactions."
)

// LedgerStore loads and saves whole ledgers. Load returns a fresh ledger for unknown users.
type LedgerStore interface {
	Load(ctx context.Context, userID string) (*models.Ledger, error)
	Save(ctx context.Context, userID string, ledger *models.Ledger) error
}

// Reply tells the chat gateway what to show. For button presses (Edit) the pressed
// message is updated in place; otherwise a new message is sent, and the gateway
// should report its id back through RecordMessage using TransactionID/PostingID.
type Reply struct {
	Text          string     `json:"text,omitempty"`
	ParseMode     string     `json:"parse_mode,omitempty"`
	Keyboard      [][]Button `json:"keyboard,omitempty"`
	ClearKeyboard bool       `json:"clear_keyboard,omitempty"`
	Edit          bool       `json:"edit,omitempty"`
	TransactionID int64      `json:"transaction_id,omitempty"`
	PostingID     *int64     `json:"posting_id,omitempty"`
}

// BotService runs user intents against the stored ledgers. Requests for the same
// user are serialised; different users never share state.
type BotService struct {
	store  LedgerStore
	engine *LedgerEngine
	config *ConfigService
	audit  *audit.AuditLogger
	locks  *userLocks
	now    func() time.Time
}

func NewBotService(store LedgerStore, engine *LedgerEngine, config *ConfigService, auditLogger *audit.AuditLogger) *BotService {
	return &BotService{
		store:  store,
		engine: engine,
		config: config,
		audit:  auditLogger,
		locks:  newUserLocks(),
		now:    time.Now,
	}
}

// HandleText parses a chat message and applies it.
func (s *BotService) HandleText(ctx context.Context, userID, text string, at time.Time) (*Reply, error) {
	event, err := ParseMessage(text)
	if err != nil {
		s.audit.LogRejected(userID, "PARSE", err.Error())
		return nil, err
	}
	return s.process(ctx, userID, event.At(at))
}

// HandleButton applies a button press on a previously sent message.
func (s *BotService) HandleButton(ctx context.Context, userID string, messageID int64, data string, at time.Time) (*Reply, error) {
	event, err := ParseKeyboardData(data)
	if err != nil {
		return nil, err
	}
	reply, err := s.process(ctx, userID, event.WithMessage(messageID).At(at))
	if err != nil {
		return nil, err
	}
	reply.Edit = true
	return reply, nil
}

func (s *BotService) process(ctx context.Context, userID string, event models.Event) (*Reply, error) {
	var (
		reply   *Reply
		tx      *models.Transaction
		posting *models.Posting
	)
	err := s.update(ctx, userID, func(ledger *models.Ledger) error {
		var err error
		tx, posting, err = s.engine.Process(ledger, event)
		if err != nil {
			return err
		}
		reply = renderReply(ledger.Config, event.Kind, tx, posting)
		return nil
	})
	if err != nil {
		if ue, ok := AsUserError(err); ok {
			s.audit.LogRejected(userID, event.Kind.String(), ue.Msg)
		}
		return nil, err
	}

	var txID, postingID int64
	if tx != nil {
		txID = tx.ID
	}
	if posting != nil {
		postingID = posting.ID
	}
	s.audit.LogLedgerEvent(userID, event.Kind.String(), txID, postingID)
	return reply, nil
}

func renderReply(config models.UserConfig, kind models.EventKind, tx *models.Transaction, posting *models.Posting) *Reply {
	switch kind {
	case models.EventCommit:
		return &Reply{ClearKeyboard: true}
	case models.EventDelete:
		return &Reply{
			Text:          FormatDeleted(tx, posting),
			ParseMode:     ParseModeMarkdownV2,
			ClearKeyboard: true,
		}
	}

	reply := &Reply{
		Text:          FormatTransaction(tx, config.DefaultCurrency()),
		ParseMode:     ParseModeMarkdownV2,
		Keyboard:      ActionsKeyboard(config, posting),
		TransactionID: tx.ID,
	}
	if posting != nil {
		id := posting.ID
		reply.PostingID = &id
	}
	return reply
}

// RecordMessage links a sent chat message to the entities it shows.
func (s *BotService) RecordMessage(ctx context.Context, userID string, messageID, transactionID int64, postingID *int64) error {
	return s.update(ctx, userID, func(ledger *models.Ledger) error {
		tx := ledger.Transaction(transactionID)
		if tx == nil {
			return userError(ErrUnknownMessage, "Transaction %d does not exist", transactionID)
		}
		var posting *models.Posting
		if postingID != nil {
			if posting = tx.Posting(*postingID); posting == nil {
				return userError(ErrNoPosting, "Posting %d does not belong to transaction %d", *postingID, transactionID)
			}
		}
		return s.engine.RecordIndex(ledger, messageID, tx, posting)
	})
}

// Start is the /start greeting.
func (s *BotService) Start() *Reply {
	return &Reply{Text: startMessage}
}

// Export returns the user's transactions as an indented JSON document and its file name.
func (s *BotService) Export(ctx context.Context, userID string) (string, []byte, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	ledger, err := s.store.Load(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	loc, err := ledger.Config.Location()
	if err != nil {
		return "", nil, err
	}

	data, err := json.MarshalIndent(ledger.Transactions, "", "    ")
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode export: %w", err)
	}
	filename := fmt.Sprintf("beanbot-%s.json", s.now().In(loc).Format("2006-01-02-15-04-05"))
	return filename, data, nil
}

// Clear wipes the user's transactions; settings survive.
func (s *BotService) Clear(ctx context.Context, userID string) (*Reply, error) {
	err := s.update(ctx, userID, func(ledger *models.Ledger) error {
		s.engine.Clear(ledger)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[BOT] Cleared ledger for user %s", userID)
	return &Reply{Text: "Cleared!"}, nil
}

// Configure runs the /config command.
func (s *BotService) Configure(ctx context.Context, userID string, args []string) (*Reply, error) {
	var text string
	err := s.update(ctx, userID, func(ledger *models.Ledger) error {
		reply, updated, err := s.config.Apply(ledger.Config, args)
		if err != nil {
			return err
		}
		ledger.Config = updated
		text = reply
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Reply{Text: text}, nil
}

// update loads the ledger, runs fn and saves only if fn succeeded.
func (s *BotService) update(ctx context.Context, userID string, fn func(*models.Ledger) error) error {
	unlock := s.locks.lock(userID)
	defer unlock()

	ledger, err := s.store.Load(ctx, userID)
	if err != nil {
		return err
	}
	if err := fn(ledger); err != nil {
		return err
	}
	return s.store.Save(ctx, userID, ledger)
}

// userLocks hands out one mutex per user and forgets it once nobody holds it.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

func (u *userLocks) lock(userID string) func() {
	u.mu.Lock()
	l, ok := u.locks[userID]
	if !ok {
		l = &userLock{}
		u.locks[userID] = l
	}
	l.refs++
	u.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		u.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(u.locks, userID)
		}
		u.mu.Unlock()
	}
}

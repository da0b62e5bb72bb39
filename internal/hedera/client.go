package hedera

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	hiero "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/jmoiron/sqlx/types"
	"github.com/sirupsen/logrus"

	"github.com/shebagreen/cleanup-backend/internal/config"
	"github.com/shebagreen/cleanup-backend/internal/logger"
	"github.com/shebagreen/cleanup-backend/internal/models"
	"github.com/shebagreen/cleanup-backend/internal/pkg/apperror"
	"github.com/shebagreen/cleanup-backend/internal/repository"
)

// TokenStore — персистентный кэш метаданных токена и закреплённого топика.
type TokenStore interface {
	GetBySymbol(ctx context.Context, symbol string) (*models.TokenMetadata, error)
	Create(ctx context.Context, token *models.TokenMetadata) error
	SetTopicID(ctx context.Context, symbol, topicID string) error
	AddSupply(ctx context.Context, symbol string, amount int64) error
}

// MessageStore — зеркало опубликованных consensus-сообщений.
type MessageStore interface {
	Create(ctx context.Context, msg *models.HcsMessage) error
}

// TokenInfo — дескриптор наградного токена.
type TokenInfo struct {
	TokenID  string `json:"token_id"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// MintTransferResult — итог mint+transfer: id токена и id транзакции перевода.
type MintTransferResult struct {
	TokenID string `json:"token_id"`
	TxID    string `json:"tx_id"`
}

// PublishResult — итог публикации в consensus-топик.
type PublishResult struct {
	ConsensusTimestamp string `json:"consensus_timestamp"`
	TxID               string `json:"tx_id"`
}

// Client — единственный владелец учётных данных оператора и хэндлов
// токена/топика. Все мутирующие операции с ledger идут через него.
//
// Если учётные данные отсутствуют или содержат плейсхолдер, клиент работает
// в деградированном режиме: каждая операция сразу возвращает ошибку
// "не инициализирован" без единого сетевого вызова.
type Client struct {
	cfg      *config.Config
	tokens   TokenStore
	messages MessageStore

	client      *hiero.Client
	operatorID  hiero.AccountID
	operatorKey hiero.PrivateKey
	initialized bool

	// Ленивая инициализация токена и топика защищена мьютексом:
	// два конкурентных первых вызова не должны создать два ресурса.
	mu      sync.Mutex
	tokenID *hiero.TokenID
	topicID *hiero.TopicID
}

// NewClient создаёт клиент и настраивает оператора. Ошибки конфигурации не
// фатальны на старте: клиент остаётся деградированным, а операции отказывают.
func NewClient(cfg *config.Config, tokens TokenStore, messages MessageStore) *Client {
	c := &Client{
		cfg:      cfg,
		tokens:   tokens,
		messages: messages,
	}

	if cfg.HederaOperatorID == "" || cfg.HederaOperatorKey == "" ||
		strings.Contains(cfg.HederaOperatorID, "XXXX") || strings.Contains(cfg.HederaOperatorKey, "XXXX") {
		logger.Log.Warn("Hedera: учётные данные оператора не заданы, функциональность ledger недоступна. " +
			"Заполните HEDERA_OPERATOR_ID и HEDERA_OPERATOR_PRIVATE_KEY в .env")
		return c
	}

	operatorID, err := hiero.AccountIDFromString(cfg.HederaOperatorID)
	if err != nil {
		logger.Log.WithError(err).Error("Hedera: некорректный HEDERA_OPERATOR_ID")
		return c
	}

	operatorKey, err := hiero.PrivateKeyFromString(cfg.HederaOperatorKey)
	if err != nil {
		logger.Log.WithError(err).Error("Hedera: некорректный HEDERA_OPERATOR_PRIVATE_KEY")
		return c
	}

	var client *hiero.Client
	switch cfg.HederaNetwork {
	case "mainnet":
		client = hiero.ClientForMainnet()
	case "previewnet":
		client = hiero.ClientForPreviewnet()
	default:
		client = hiero.ClientForTestnet()
	}
	client.SetOperator(operatorID, operatorKey)

	c.client = client
	c.operatorID = operatorID
	c.operatorKey = operatorKey
	c.initialized = true

	logger.Log.WithFields(logrus.Fields{
		"network":  cfg.HederaNetwork,
		"operator": cfg.HederaOperatorID,
	}).Info("Hedera клиент инициализирован")

	return c
}

// Initialized сообщает, готов ли клиент выполнять операции с ledger.
func (c *Client) Initialized() bool {
	return c.initialized
}

func (c *Client) requireInit() error {
	if !c.initialized {
		return apperror.ErrLedgerUninitialized
	}
	return nil
}

// EnsureRewardToken возвращает наградной токен, создавая его при первом
// обращении. Идемпотентность обеспечивается локальным lookup по символу и
// уникальным ограничением на symbol: проигравший гонку уходит на lookup.
func (c *Client) EnsureRewardToken(ctx context.Context) (*TokenInfo, error) {
	if err := c.requireInit(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureRewardTokenLocked(ctx)
}

func (c *Client) ensureRewardTokenLocked(ctx context.Context) (*TokenInfo, error) {
	symbol := c.cfg.TokenSymbol
	name := c.cfg.TokenName

	existing, err := c.tokens.GetBySymbol(ctx, symbol)
	if err == nil {
		tokenID, parseErr := hiero.TokenIDFromString(existing.TokenID)
		if parseErr != nil {
			return nil, fmt.Errorf("hedera: некорректный token id в БД %q: %w", existing.TokenID, parseErr)
		}
		c.tokenID = &tokenID
		return &TokenInfo{
			TokenID:  existing.TokenID,
			Name:     existing.Name,
			Symbol:   existing.Symbol,
			Decimals: existing.Decimals,
		}, nil
	}
	if !errors.Is(err, repository.ErrTokenNotFound) {
		return nil, fmt.Errorf("hedera: не удалось прочитать метаданные токена: %w", err)
	}

	logger.Log.WithField("symbol", symbol).Info("Создаём наградной токен")

	tx, err := hiero.NewTokenCreateTransaction().
		SetTokenName(name).
		SetTokenSymbol(symbol).
		SetDecimals(0).
		SetInitialSupply(0).
		SetTokenType(hiero.TokenTypeFungibleCommon).
		SetSupplyType(hiero.TokenSupplyTypeInfinite).
		SetTreasuryAccountID(c.operatorID).
		SetAdminKey(c.operatorKey.PublicKey()).
		SetSupplyKey(c.operatorKey.PublicKey()).
		FreezeWith(c.client)
	if err != nil {
		return nil, fmt.Errorf("hedera: не удалось подготовить создание токена: %w", err)
	}

	resp, err := tx.Sign(c.operatorKey).Execute(c.client)
	if err != nil {
		return nil, fmt.Errorf("hedera: не удалось создать токен: %w", err)
	}

	receipt, err := resp.GetReceipt(c.client)
	if err != nil {
		return nil, fmt.Errorf("hedera: не удалось получить receipt создания токена: %w", err)
	}
	if receipt.TokenID == nil {
		return nil, fmt.Errorf("hedera: receipt создания токена не содержит token id")
	}

	tokenID := *receipt.TokenID
	c.tokenID = &tokenID

	meta := &models.TokenMetadata{
		TokenID:     tokenID.String(),
		Name:        name,
		Symbol:      symbol,
		Decimals:    0,
		TotalSupply: 0,
	}
	if err := c.tokens.Create(ctx, meta); err != nil {
		if errors.Is(err, repository.ErrTokenExists) {
			// Конкурент успел записать свой токен: принимаем его и
			// забываем о только что созданном.
			winner, lookupErr := c.tokens.GetBySymbol(ctx, symbol)
			if lookupErr != nil {
				return nil, fmt.Errorf("hedera: lookup после проигранной гонки: %w", lookupErr)
			}
			winnerID, parseErr := hiero.TokenIDFromString(winner.TokenID)
			if parseErr != nil {
				return nil, fmt.Errorf("hedera: некорректный token id в БД %q: %w", winner.TokenID, parseErr)
			}
			c.tokenID = &winnerID
			return &TokenInfo{
				TokenID:  winner.TokenID,
				Name:     winner.Name,
				Symbol:   winner.Symbol,
				Decimals: winner.Decimals,
			}, nil
		}
		return nil, fmt.Errorf("hedera: не удалось сохранить метаданные токена: %w", err)
	}

	logger.Log.WithField("token_id", tokenID.String()).Info("Наградной токен создан")

	return &TokenInfo{
		TokenID:  tokenID.String(),
		Name:     name,
		Symbol:   symbol,
		Decimals: 0,
	}, nil
}

// MintAndTransfer чеканит amount единиц в трежери оператора и переводит их
// на счёт получателя. Два последовательных подписанных перевода с ожиданием
// receipt; ни один из шагов здесь не ретраится — решение за вызывающим.
func (c *Client) MintAndTransfer(ctx context.Context, toAccountID string, amount int64) (*MintTransferResult, error) {
	if err := c.requireInit(); err != nil {
		return nil, err
	}

	info, err := c.EnsureRewardToken(ctx)
	if err != nil {
		return nil, err
	}

	tokenID, err := hiero.TokenIDFromString(info.TokenID)
	if err != nil {
		return nil, fmt.Errorf("hedera: некорректный token id %q: %w", info.TokenID, err)
	}

	toAccount, err := hiero.AccountIDFromString(toAccountID)
	if err != nil {
		return nil, fmt.Errorf("hedera: некорректный account id %q: %w", toAccountID, err)
	}

	logger.Log.WithFields(logrus.Fields{
		"amount":  amount,
		"account": toAccountID,
	}).Info("Чеканим и переводим наградные токены")

	mintTx, err := hiero.NewTokenMintTransaction().
		SetTokenID(tokenID).
		SetAmount(uint64(amount)).
		FreezeWith(c.client)
	if err != nil {
		return nil, fmt.Errorf("hedera: не удалось подготовить mint: %w", err)
	}

	mintResp, err := mintTx.Sign(c.operatorKey).Execute(c.client)
	if err != nil {
		return nil, fmt.Errorf("hedera: mint не выполнен: %w", err)
	}
	if _, err := mintResp.GetReceipt(c.client); err != nil {
		return nil, fmt.Errorf("hedera: receipt mint не получен: %w", err)
	}

	transferTx, err := hiero.NewTransferTransaction().
		AddTokenTransfer(tokenID, c.operatorID, -amount).
		AddTokenTransfer(tokenID, toAccount, amount).
		FreezeWith(c.client)
	if err != nil {
		return nil, fmt.Errorf("hedera: не удалось подготовить transfer: %w", err)
	}

	transferResp, err := transferTx.Sign(c.operatorKey).Execute(c.client)
	if err != nil {
		return nil, fmt.Errorf("hedera: transfer не выполнен: %w", err)
	}
	if _, err := transferResp.GetReceipt(c.client); err != nil {
		return nil, fmt.Errorf("hedera: receipt transfer не получен: %w", err)
	}

	txID := transferResp.TransactionID.String()

	// Локальный счётчик эмиссии best-effort: сбой не отменяет перевод.
	if err := c.tokens.AddSupply(ctx, info.Symbol, amount); err != nil {
		logger.Log.WithError(err).Warn("Не удалось обновить локальный total_supply")
	}

	logger.Log.WithField("tx_id", txID).Info("Наградные токены переведены")

	return &MintTransferResult{
		TokenID: info.TokenID,
		TxID:    txID,
	}, nil
}

// EnsureTopic возвращает consensus-топик: из конфигурации, из кэша процесса,
// из сохранённых метаданных токена — либо создаёт новый и сразу персистит его,
// чтобы рестарт процесса не наплодил топиков.
func (c *Client) EnsureTopic(ctx context.Context) (string, error) {
	if err := c.requireInit(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureTopicLocked(ctx)
}

func (c *Client) ensureTopicLocked(ctx context.Context) (string, error) {
	if c.cfg.HcsTopicID != "" {
		topicID, err := hiero.TopicIDFromString(c.cfg.HcsTopicID)
		if err != nil {
			return "", fmt.Errorf("hedera: некорректный HCS_TOPIC_ID %q: %w", c.cfg.HcsTopicID, err)
		}
		c.topicID = &topicID
		return c.cfg.HcsTopicID, nil
	}

	if c.topicID != nil {
		return c.topicID.String(), nil
	}

	// Топик, созданный до рестарта, хранится рядом с метаданными токена.
	if meta, err := c.tokens.GetBySymbol(ctx, c.cfg.TokenSymbol); err == nil && meta.TopicID != nil && *meta.TopicID != "" {
		topicID, parseErr := hiero.TopicIDFromString(*meta.TopicID)
		if parseErr != nil {
			return "", fmt.Errorf("hedera: некорректный topic id в БД %q: %w", *meta.TopicID, parseErr)
		}
		c.topicID = &topicID
		return *meta.TopicID, nil
	}

	logger.Log.Info("Создаём consensus-топик")

	tx, err := hiero.NewTopicCreateTransaction().
		SetSubmitKey(c.operatorKey.PublicKey()).
		FreezeWith(c.client)
	if err != nil {
		return "", fmt.Errorf("hedera: не удалось подготовить создание топика: %w", err)
	}

	resp, err := tx.Sign(c.operatorKey).Execute(c.client)
	if err != nil {
		return "", fmt.Errorf("hedera: не удалось создать топик: %w", err)
	}

	receipt, err := resp.GetReceipt(c.client)
	if err != nil {
		return "", fmt.Errorf("hedera: не удалось получить receipt создания топика: %w", err)
	}
	if receipt.TopicID == nil {
		return "", fmt.Errorf("hedera: receipt создания топика не содержит topic id")
	}

	topicID := *receipt.TopicID
	c.topicID = &topicID

	if err := c.tokens.SetTopicID(ctx, c.cfg.TokenSymbol, topicID.String()); err != nil {
		logger.Log.WithError(err).Warn("Не удалось сохранить topic id, после рестарта будет создан новый топик")
	}

	logger.Log.WithField("topic_id", topicID.String()).Info("Consensus-топик создан")

	return topicID.String(), nil
}

// PublishMessage сериализует payload в JSON, публикует его в топик, дожидается
// receipt и record (ради консенсусного времени) и зеркалит запись в БД.
func (c *Client) PublishMessage(ctx context.Context, payload interface{}) (*PublishResult, error) {
	if err := c.requireInit(); err != nil {
		return nil, err
	}

	topicIDStr, err := c.EnsureTopic(ctx)
	if err != nil {
		return nil, err
	}

	topicID, err := hiero.TopicIDFromString(topicIDStr)
	if err != nil {
		return nil, fmt.Errorf("hedera: некорректный topic id %q: %w", topicIDStr, err)
	}

	message, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("hedera: не удалось сериализовать сообщение: %w", err)
	}

	logger.Log.WithField("topic_id", topicIDStr).Info("Публикуем consensus-сообщение")

	tx, err := hiero.NewTopicMessageSubmitTransaction().
		SetTopicID(topicID).
		SetMessage(message).
		FreezeWith(c.client)
	if err != nil {
		return nil, fmt.Errorf("hedera: не удалось подготовить публикацию: %w", err)
	}

	resp, err := tx.Sign(c.operatorKey).Execute(c.client)
	if err != nil {
		return nil, fmt.Errorf("hedera: публикация не выполнена: %w", err)
	}
	if _, err := resp.GetReceipt(c.client); err != nil {
		return nil, fmt.Errorf("hedera: receipt публикации не получен: %w", err)
	}

	// Консенсусное время присваивает сеть, оно есть только в record.
	record, err := resp.GetRecord(c.client)
	if err != nil {
		return nil, fmt.Errorf("hedera: record публикации не получен: %w", err)
	}

	consensusTimestamp := fmt.Sprintf("%d.%09d", record.ConsensusTimestamp.Unix(), record.ConsensusTimestamp.Nanosecond())
	txID := resp.TransactionID.String()

	mirror := &models.HcsMessage{
		TopicID:            topicIDStr,
		Message:            types.JSONText(message),
		ConsensusTimestamp: consensusTimestamp,
		TxID:               txID,
	}
	if err := c.messages.Create(ctx, mirror); err != nil {
		logger.Log.WithError(err).Warn("Не удалось зеркалировать consensus-сообщение в БД")
	}

	logger.Log.WithField("tx_id", txID).Info("Consensus-сообщение опубликовано")

	return &PublishResult{
		ConsensusTimestamp: consensusTimestamp,
		TxID:               txID,
	}, nil
}

// GetAccountBalance возвращает баланс наградного токена на счёте.
// Нулевой баланс и неразрешимый счёт неразличимы: оба дают 0 без ошибки.
func (c *Client) GetAccountBalance(ctx context.Context, accountID string) (int64, error) {
	if err := c.requireInit(); err != nil {
		return 0, err
	}

	account, err := hiero.AccountIDFromString(accountID)
	if err != nil {
		logger.Log.WithField("account", accountID).Warn("Некорректный account id в запросе баланса")
		return 0, nil
	}

	balance, err := hiero.NewAccountBalanceQuery().
		SetAccountID(account).
		Execute(c.client)
	if err != nil {
		logger.Log.WithField("account", accountID).WithError(err).Warn("Запрос баланса не выполнен")
		return 0, nil
	}

	info, err := c.EnsureRewardToken(ctx)
	if err != nil {
		return 0, err
	}
	tokenID, err := hiero.TokenIDFromString(info.TokenID)
	if err != nil {
		return 0, fmt.Errorf("hedera: некорректный token id %q: %w", info.TokenID, err)
	}

	return int64(balance.Tokens.Get(tokenID)), nil
}

// CheckHealth выполняет лёгкий запрос баланса собственного счёта оператора.
func (c *Client) CheckHealth(ctx context.Context) bool {
	if !c.initialized {
		return false
	}

	_, err := hiero.NewAccountBalanceQuery().
		SetAccountID(c.operatorID).
		Execute(c.client)
	if err != nil {
		logger.Log.WithError(err).Warn("Hedera health check не прошёл")
		return false
	}
	return true
}

package hedera

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shebagreen/cleanup-backend/internal/logger"
	"github.com/shebagreen/cleanup-backend/internal/models"
)

// DidPublicKey — запись о ключе в DID-документе.
type DidPublicKey struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Controller      string `json:"controller"`
	PublicKeyBase58 string `json:"publicKeyBase58"`
}

// DidProof — блок подписи DID-документа ключом оператора.
type DidProof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	ProofPurpose       string `json:"proofPurpose"`
	VerificationMethod string `json:"verificationMethod"`
	Signature          string `json:"signature"`
}

// DidDocument — минимальный DID-документ, привязанный к ключу оператора.
type DidDocument struct {
	Context        string         `json:"@context"`
	ID             string         `json:"id"`
	PublicKey      []DidPublicKey `json:"publicKey"`
	Authentication []string       `json:"authentication"`
	Proof          *DidProof      `json:"proof,omitempty"`
}

// DidResult — DID-строка и подписанный документ.
type DidResult struct {
	Did         string      `json:"did"`
	DidDocument DidDocument `json:"did_document"`
}

// CreateDID детерминированно выводит DID из счёта оператора и userId,
// подписывает канонические байты документа ключом оператора и анкерит
// подписанный документ в consensus-лог типизированным событием.
// Персистентность DID — забота вызывающего.
func (c *Client) CreateDID(ctx context.Context, userID string) (*DidResult, error) {
	if err := c.requireInit(); err != nil {
		return nil, err
	}

	did := fmt.Sprintf("did:hedera:%s:%s_%s", c.cfg.HederaNetwork, c.operatorID.String(), userID)
	keyID := did + "#key-1"

	logger.Log.WithField("user_id", userID).WithField("did", did).Info("Создаём DID")

	document := DidDocument{
		Context: "https://www.w3.org/ns/did/v1",
		ID:      did,
		PublicKey: []DidPublicKey{
			{
				ID:              keyID,
				Type:            "Ed25519VerificationKey2018",
				Controller:      did,
				PublicKeyBase58: c.operatorKey.PublicKey().StringRaw(),
			},
		},
		Authentication: []string{keyID},
	}

	// Подписываются байты документа без блока proof.
	canonical, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("hedera: не удалось сериализовать DID-документ: %w", err)
	}

	signature := c.operatorKey.Sign(canonical)

	document.Proof = &DidProof{
		Type:               "Ed25519Signature2018",
		Created:            time.Now().UTC().Format(time.RFC3339),
		ProofPurpose:       "authentication",
		VerificationMethod: keyID,
		Signature:          hex.EncodeToString(signature),
	}

	event := map[string]interface{}{
		"type":        models.HcsEventDidCreation,
		"did":         did,
		"userId":      userID,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"didDocument": document,
	}

	if _, err := c.PublishMessage(ctx, event); err != nil {
		return nil, err
	}

	logger.Log.WithField("user_id", userID).Info("DID создан и заанкерен")

	return &DidResult{
		Did:         did,
		DidDocument: document,
	}, nil
}

package crypto

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
	"golang.org/x/crypto/openpgp/packet"
)

const defaultRSABits = 4096

// PGPManager хранит ключ, которым подписываются выписки по счетам
type PGPManager struct {
	entity  *openpgp.Entity // PGP сущность
	keyPath string          // Путь к файлу ключа
	rsaBits int
}

// NewPGPManager загружает ключ из keyPath или создает новый
func NewPGPManager(keyPath string) (*PGPManager, error) {
	return newPGPManager(keyPath, defaultRSABits)
}

func newPGPManager(keyPath string, rsaBits int) (*PGPManager, error) {
	manager := &PGPManager{keyPath: keyPath, rsaBits: rsaBits}

	if err := manager.init(); err != nil {
		return nil, fmt.Errorf("не удалось инициализировать PGP: %w", err)
	}

	return manager, nil
}

// init загружает существующий ключ или создает новый
func (m *PGPManager) init() error {
	if _, err := os.Stat(m.keyPath); err == nil {
		entity, err := m.loadKeyFromFile()
		if err != nil {
			return fmt.Errorf("не удалось загрузить PGP ключ: %w", err)
		}
		m.entity = entity
		return nil
	}

	return m.generateAndSaveKey()
}

func (m *PGPManager) config() *packet.Config {
	return &packet.Config{
		Rand:          rand.Reader,
		RSABits:       m.rsaBits,
		DefaultHash:   crypto.SHA256,
		DefaultCipher: packet.CipherAES256,
	}
}

// generateAndSaveKey генерирует новый ключ и сохраняет его в файл
func (m *PGPManager) generateAndSaveKey() error {
	config := m.config()

	entity, err := openpgp.NewEntity(
		"SmartBank Statements",
		"",
		"statements@smartbank.local",
		config,
	)
	if err != nil {
		return fmt.Errorf("не удалось сгенерировать сущность: %w", err)
	}

	// Подписываем идентификаторы
	for _, id := range entity.Identities {
		err := id.SelfSignature.SignUserId(
			id.UserId.Id,
			entity.PrimaryKey,
			entity.PrivateKey,
			config,
		)
		if err != nil {
			return fmt.Errorf("не удалось подписать идентичность: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(m.keyPath), 0700); err != nil {
		return fmt.Errorf("не удалось создать директорию для ключа: %w", err)
	}

	file, err := os.OpenFile(m.keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("не удалось создать файл ключа: %w", err)
	}
	defer file.Close()

	armorWriter, err := armor.Encode(file, openpgp.PrivateKeyType, nil)
	if err != nil {
		return fmt.Errorf("не удалось создать armor writer: %w", err)
	}

	if err := entity.SerializePrivate(armorWriter, config); err != nil {
		armorWriter.Close()
		return fmt.Errorf("не удалось сериализовать приватный ключ: %w", err)
	}

	if err := armorWriter.Close(); err != nil {
		return fmt.Errorf("не удалось закрыть armor writer: %w", err)
	}

	m.entity = entity
	return nil
}

func (m *PGPManager) loadKeyFromFile() (*openpgp.Entity, error) {
	file, err := os.Open(m.keyPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	block, err := armor.Decode(file)
	if err != nil {
		return nil, err
	}

	if block.Type != openpgp.PrivateKeyType {
		return nil, errors.New("файл не является приватным ключом")
	}

	return openpgp.ReadEntity(packet.NewReader(block.Body))
}

// Sign возвращает ASCII-armored отделенную подпись данных
func (m *PGPManager) Sign(data []byte) (string, error) {
	var buf bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&buf, m.entity, bytes.NewReader(data), m.config()); err != nil {
		return "", fmt.Errorf("не удалось подписать данные: %w", err)
	}
	return buf.String(), nil
}

// Verify проверяет отделенную подпись, созданную Sign
func (m *PGPManager) Verify(data []byte, signature string) error {
	_, err := openpgp.CheckArmoredDetachedSignature(
		openpgp.EntityList{m.entity},
		bytes.NewReader(data),
		strings.NewReader(signature),
	)
	if err != nil {
		return fmt.Errorf("подпись недействительна: %w", err)
	}
	return nil
}

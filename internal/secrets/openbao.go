package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openbao/openbao/api/v2"
)

var ErrOpenBaoSecretNotFound = errors.New("openbao secret path not found")

// BootstrapFromOpenBao loads secrets (typically STRIPE_SECRET_KEY) from an
// OpenBao KV v2 path and exports them as environment variables before config
// is read. Without OPENBAO_ADDR, OPENBAO_TOKEN and OPENBAO_SECRET_PATH it is a no-op.
func BootstrapFromOpenBao(ctx context.Context) error {
	cfg := openBaoConfigFromEnv()
	if !cfg.enabled {
		return nil
	}

	values, err := readSecrets(ctx, cfg)
	if err != nil {
		return err
	}

	for k, v := range values {
		_ = os.Setenv(k, v)
	}
	return nil
}

type openBaoConfig struct {
	addr      string
	token     string
	mountPath string
	secretKey string
	namespace string
	enabled   bool
}

func openBaoConfigFromEnv() openBaoConfig {
	addr := strings.TrimSpace(os.Getenv("OPENBAO_ADDR"))
	token := os.Getenv("OPENBAO_TOKEN")
	secretPath := strings.Trim(strings.TrimSpace(os.Getenv("OPENBAO_SECRET_PATH")), "/")

	if addr == "" || token == "" || secretPath == "" {
		return openBaoConfig{enabled: false}
	}

	mount := os.Getenv("OPENBAO_MOUNT")
	if mount == "" {
		mount = "secret"
	}

	return openBaoConfig{
		addr:      strings.TrimRight(addr, "/"),
		token:     token,
		mountPath: strings.Trim(strings.TrimSpace(mount), "/"),
		secretKey: secretPath,
		namespace: strings.TrimSpace(os.Getenv("OPENBAO_NAMESPACE")),
		enabled:   true,
	}
}

func readSecrets(ctx context.Context, cfg openBaoConfig) (map[string]string, error) {
	clientCfg := api.DefaultConfig()
	if clientCfg.Error != nil {
		return nil, fmt.Errorf("openbao config: %w", clientCfg.Error)
	}
	clientCfg.Address = cfg.addr
	clientCfg.Timeout = 5 * time.Second
	clientCfg.MaxRetries = 0

	client, err := api.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create OpenBao client: %w", err)
	}
	client.SetToken(cfg.token)
	if cfg.namespace != "" {
		client.SetNamespace(cfg.namespace)
	}

	secret, err := client.KVv2(cfg.mountPath).Get(ctx, cfg.secretKey)
	if err != nil {
		if errors.Is(err, api.ErrSecretNotFound) {
			return nil, ErrOpenBaoSecretNotFound
		}
		return nil, fmt.Errorf("read OpenBao secret %s/%s: %w", cfg.mountPath, cfg.secretKey, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, ErrOpenBaoSecretNotFound
	}

	return flatten(secret.Data), nil
}

// flatten keeps scalar values only; nested maps and lists are skipped rather
// than failing the whole bootstrap.
func flatten(data map[string]interface{}) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case string:
			out[k] = val
		case fmt.Stringer:
			out[k] = val.String()
		case bool:
			out[k] = strconv.FormatBool(val)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		}
	}
	return out
}

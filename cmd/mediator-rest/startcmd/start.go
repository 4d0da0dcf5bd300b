/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
	"github.com/adorsys/didcomm-mediator-rs-sub002/component/storage/leveldb"
	"github.com/adorsys/didcomm-mediator-rs-sub002/component/storage/mem"
	"github.com/adorsys/didcomm-mediator-rs-sub002/component/storage/mysql"
	"github.com/adorsys/didcomm-mediator-rs-sub002/component/storage/sqlite"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/config"
	didcommhttp "github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/transport/http"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/transport/ws"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/mediator"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/resilience"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/restapi"
	"github.com/adorsys/didcomm-mediator-rs-sub002/spi/storage"
)

const (
	envPrefix = "MEDIATOR_"

	configFlagName  = "config"
	configFlagUsage = "Path of a YAML, TOML or JSON file whose keys are the flag names." +
		" Flags and environment variables take precedence over the file."

	// host flag.
	hostFlagName      = string(config.HostURL)
	hostEnvKey        = envPrefix + "HOST_URL"
	hostFlagShorthand = "a"
	hostFlagUsage     = "Host Name:Port of the DIDComm and REST endpoints." +
		" Alternatively, this can be set with the following environment variable: " + hostEnvKey

	wsHostFlagName  = string(config.WebSocketHostURL)
	wsHostEnvKey    = envPrefix + "WS_HOST_URL"
	wsHostFlagUsage = "Host Name:Port of the WebSocket ingress (optional)." +
		" Alternatively, this can be set with the following environment variable: " + wsHostEnvKey

	publicEndpointFlagName      = string(config.PublicEndpoint)
	publicEndpointEnvKey        = envPrefix + "PUBLIC_ENDPOINT"
	publicEndpointFlagShorthand = "e"
	publicEndpointFlagUsage     = "Externally reachable URL advertised in the mediator DID document." +
		" Alternatively, this can be set with the following environment variable: " + publicEndpointEnvKey

	// api token flag.
	tokenFlagName      = string(config.APIToken)
	tokenEnvKey        = envPrefix + "API_TOKEN" // nolint:gosec
	tokenFlagShorthand = "t"
	tokenFlagUsage     = "Bearer token of the admin endpoints. Admin endpoints are off without it." +
		" Alternatively, this can be set with the following environment variable: " + tokenEnvKey

	databaseTypeFlagName      = string(config.DatabaseType)
	databaseTypeEnvKey        = envPrefix + "DATABASE_TYPE"
	databaseTypeFlagShorthand = "q"
	databaseTypeFlagUsage     = "The type of database to use." +
		" Supported options: mem, leveldb, sqlite, mysql." +
		" Alternatively, this can be set with the following environment variable: " + databaseTypeEnvKey

	databaseURLFlagName      = string(config.DatabaseURL)
	databaseURLEnvKey        = envPrefix + "DATABASE_URL"
	databaseURLFlagShorthand = "v"
	databaseURLFlagUsage     = "The DSN of the mysql database." +
		" Alternatively, this can be set with the following environment variable: " + databaseURLEnvKey

	databasePathFlagName  = string(config.DatabasePath)
	databasePathEnvKey    = envPrefix + "DATABASE_PATH"
	databasePathFlagUsage = "The directory (leveldb) or file (sqlite) of the database." +
		" Alternatively, this can be set with the following environment variable: " + databasePathEnvKey

	databasePrefixFlagName      = string(config.DatabasePrefix)
	databasePrefixEnvKey        = envPrefix + "DATABASE_PREFIX"
	databasePrefixFlagShorthand = "u"
	databasePrefixFlagUsage     = "An optional prefix to be used when creating and retrieving underlying databases. " +
		" Alternatively, this can be set with the following environment variable: " + databasePrefixEnvKey

	databaseTimeoutFlagName  = string(config.DatabaseTimeout)
	databaseTimeoutFlagUsage = "Total time in seconds to wait until the db is available before giving up." +
		" Default: " + databaseTimeoutDefault + " seconds." +
		" Alternatively, this can be set with the following environment variable: " + databaseTimeoutEnvKey
	databaseTimeoutEnvKey  = envPrefix + "DATABASE_TIMEOUT"
	databaseTimeoutDefault = "30"

	breakerThresholdFlagName  = string(config.BreakerFailureThreshold)
	breakerThresholdEnvKey    = envPrefix + "BREAKER_FAILURE_THRESHOLD"
	breakerThresholdFlagUsage = "Consecutive failures that open a circuit breaker. Default: 5." +
		" Alternatively, this can be set with the following environment variable: " + breakerThresholdEnvKey

	breakerResetFlagName  = string(config.BreakerResetTimeout)
	breakerResetEnvKey    = envPrefix + "BREAKER_RESET_TIMEOUT"
	breakerResetFlagUsage = "How long an open breaker rejects calls, e.g. 30s." +
		" Alternatively, this can be set with the following environment variable: " + breakerResetEnvKey

	retryAttemptsFlagName  = string(config.RetryMaxAttempts)
	retryAttemptsEnvKey    = envPrefix + "RETRY_MAX_ATTEMPTS"
	retryAttemptsFlagUsage = "Tries of a storage or resolver call, the first one included." +
		" Alternatively, this can be set with the following environment variable: " + retryAttemptsEnvKey

	retryInitialDelayFlagName  = string(config.RetryInitialDelay)
	retryInitialDelayEnvKey    = envPrefix + "RETRY_INITIAL_DELAY"
	retryInitialDelayFlagUsage = "Wait before the first retry, e.g. 100ms." +
		" Alternatively, this can be set with the following environment variable: " + retryInitialDelayEnvKey

	retryMaxDelayFlagName  = string(config.RetryMaxDelay)
	retryMaxDelayEnvKey    = envPrefix + "RETRY_MAX_DELAY"
	retryMaxDelayFlagUsage = "Upper bound of the wait between retries, e.g. 2s." +
		" Alternatively, this can be set with the following environment variable: " + retryMaxDelayEnvKey

	retryFactorFlagName  = string(config.RetryFactor)
	retryFactorEnvKey    = envPrefix + "RETRY_FACTOR"
	retryFactorFlagUsage = "Growth factor of the wait between retries." +
		" Alternatively, this can be set with the following environment variable: " + retryFactorEnvKey

	retryFixedFlagName  = string(config.RetryFixed)
	retryFixedEnvKey    = envPrefix + "RETRY_FIXED"
	retryFixedFlagUsage = "Wait the initial delay between every retry (true/false)." +
		" Alternatively, this can be set with the following environment variable: " + retryFixedEnvKey

	cacheSizeFlagName  = string(config.ResolverCacheSize)
	cacheSizeEnvKey    = envPrefix + "RESOLVER_CACHE_SIZE"
	cacheSizeFlagUsage = "Number of DID documents kept by the resolver cache." +
		" Alternatively, this can be set with the following environment variable: " + cacheSizeEnvKey

	cacheTTLFlagName  = string(config.ResolverCacheTTL)
	cacheTTLEnvKey    = envPrefix + "RESOLVER_CACHE_TTL"
	cacheTTLFlagUsage = "How long a resolved DID document is kept, e.g. 5m." +
		" Alternatively, this can be set with the following environment variable: " + cacheTTLEnvKey

	seedFlagName  = string(config.MediatorSeed)
	seedEnvKey    = envPrefix + "SEED" // nolint:gosec
	seedFlagUsage = "Hex encoded 32 byte ed25519 seed of the mediator DID. A random DID is used without it." +
		" Alternatively, this can be set with the following environment variable: " + seedEnvKey

	// log level.
	logLevelFlagName  = string(config.LogLevel)
	logLevelEnvKey    = envPrefix + "LOG_LEVEL"
	logLevelFlagUsage = "Log level." +
		" Possible values [INFO] [DEBUG] [ERROR] [WARNING] [CRITICAL] . Defaults to INFO if not set." +
		" Alternatively, this can be set with the following environment variable: " + logLevelEnvKey

	logFormatFlagName  = string(config.LogFormat)
	logFormatEnvKey    = envPrefix + "LOG_FORMAT"
	logFormatFlagUsage = "Log format. Possible values [console] [json]. Defaults to console." +
		" Alternatively, this can be set with the following environment variable: " + logFormatEnvKey

	tlsCertFileFlagName      = string(config.TLSCertFile)
	tlsCertFileEnvKey        = "TLS_CERT_FILE"
	tlsCertFileFlagShorthand = "c"
	tlsCertFileFlagUsage     = "tls certificate file." +
		" Alternatively, this can be set with the following environment variable: " + tlsCertFileEnvKey

	tlsKeyFileFlagName      = string(config.TLSKeyFile)
	tlsKeyFileEnvKey        = "TLS_KEY_FILE"
	tlsKeyFileFlagShorthand = "k"
	tlsKeyFileFlagUsage     = "tls key file." +
		" Alternatively, this can be set with the following environment variable: " + tlsKeyFileEnvKey

	databaseTypeMemOption     = "mem"
	databaseTypeLevelDBOption = "leveldb"
	databaseTypeSQLiteOption  = "sqlite"
	databaseTypeMYSQLDBOption = "mysql"

	logFormatJSON = "json"

	sqlitePoolSize = 10
)

var (
	errMissingHost = errors.New("host not provided")
	logger         = log.New("didcomm-mediator/mediator-rest")
)

type mediatorParameters struct {
	server         server
	host           string
	wsHost         string
	publicEndpoint string
	token          string
	dbParam        *dbParam
	retryPolicy    resilience.RetryPolicy
	breakerOpts    []resilience.BreakerOption
	cacheSize      int
	cacheTTL       time.Duration
	seed           []byte
	tlsCertFile    string
	tlsKeyFile     string
}

type dbParam struct {
	dbType  string
	url     string
	path    string
	prefix  string
	timeout uint64
}

// nolint:gochecknoglobals
var supportedStorageProviders = map[string]func(p *dbParam) (storage.Provider, error){
	databaseTypeMemOption: func(_ *dbParam) (storage.Provider, error) { // nolint:unparam
		return mem.NewProvider(), nil
	},
	databaseTypeLevelDBOption: func(p *dbParam) (storage.Provider, error) { // nolint:unparam
		return leveldb.NewProvider(p.path), nil
	},
	databaseTypeSQLiteOption: func(p *dbParam) (storage.Provider, error) {
		return sqlite.NewProvider(p.path, sqlitePoolSize)
	},
	databaseTypeMYSQLDBOption: func(p *dbParam) (storage.Provider, error) {
		return mysql.NewProvider(p.url)
	},
}

type server interface {
	ListenAndServe(host string, router http.Handler, certFile, keyFile string) error
}

// HTTPServer represents an actual server implementation.
type HTTPServer struct{}

// ListenAndServe starts the server using the standard Go HTTP server implementation.
func (s *HTTPServer) ListenAndServe(host string, router http.Handler, certFile, keyFile string) error {
	if certFile != "" && keyFile != "" {
		return http.ListenAndServeTLS(host, certFile, keyFile, router) // nolint:gosec
	}

	return http.ListenAndServe(host, router) // nolint:gosec
}

// Cmd returns the Cobra start command.
func Cmd(server server) (*cobra.Command, error) {
	startCmd := createStartCMD(server)

	createFlags(startCmd)

	return startCmd, nil
}

// settings resolves values from flags, then environment variables, then the config file.
type settings struct {
	cmd  *cobra.Command
	file *config.Settings
}

func newSettings(cmd *cobra.Command) (*settings, error) {
	s := &settings{cmd: cmd}

	path, err := getUserSetVar(cmd, configFlagName, envPrefix+"CONFIG", true)
	if err != nil || path == "" {
		return s, err
	}

	s.file, err = config.Load(path)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *settings) get(flagName, envKey string, isOptional bool) (string, error) {
	value, err := getUserSetVar(s.cmd, flagName, envKey, true)
	if err != nil || value != "" || s.cmd.Flags().Changed(flagName) {
		return value, err
	}

	if _, isSet := os.LookupEnv(envKey); isSet {
		return value, nil
	}

	if s.file != nil {
		if fileValue, ok := s.file.String(config.Key(flagName)); ok {
			return fileValue, nil
		}
	}

	if isOptional {
		return "", nil
	}

	return "", errors.New("Neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set.")
}

func createStartCMD(server server) *cobra.Command { //nolint: funlen, gocyclo
	return &cobra.Command{
		Use:   "start",
		Short: "Start a mediator",
		Long:  `Start a DIDComm mediator with its REST endpoints`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSettings(cmd)
			if err != nil {
				return err
			}

			logFormat, err := s.get(logFormatFlagName, logFormatEnvKey, true)
			if err != nil {
				return err
			}

			log.Initialize(log.NewZerologProvider(os.Stdout, logFormat == logFormatJSON))

			// log level
			logLevel, err := s.get(logLevelFlagName, logLevelEnvKey, true)
			if err != nil {
				return err
			}

			err = setLogLevel(logLevel)
			if err != nil {
				return err
			}

			host, err := s.get(hostFlagName, hostEnvKey, false)
			if err != nil {
				return err
			}

			wsHost, err := s.get(wsHostFlagName, wsHostEnvKey, true)
			if err != nil {
				return err
			}

			publicEndpoint, err := s.get(publicEndpointFlagName, publicEndpointEnvKey, true)
			if err != nil {
				return err
			}

			token, err := s.get(tokenFlagName, tokenEnvKey, true)
			if err != nil {
				return err
			}

			dbParam, err := getDBParam(s)
			if err != nil {
				return err
			}

			retryPolicy, err := getRetryPolicy(s)
			if err != nil {
				return err
			}

			breakerOpts, err := getBreakerOpts(s)
			if err != nil {
				return err
			}

			cacheSize, cacheTTL, err := getCacheParams(s)
			if err != nil {
				return err
			}

			seed, err := getSeed(s)
			if err != nil {
				return err
			}

			tlsCertFile, err := s.get(tlsCertFileFlagName, tlsCertFileEnvKey, true)
			if err != nil {
				return err
			}

			tlsKeyFile, err := s.get(tlsKeyFileFlagName, tlsKeyFileEnvKey, true)
			if err != nil {
				return err
			}

			parameters := &mediatorParameters{
				server:         server,
				host:           host,
				wsHost:         wsHost,
				publicEndpoint: publicEndpoint,
				token:          token,
				dbParam:        dbParam,
				retryPolicy:    retryPolicy,
				breakerOpts:    breakerOpts,
				cacheSize:      cacheSize,
				cacheTTL:       cacheTTL,
				seed:           seed,
				tlsCertFile:    tlsCertFile,
				tlsKeyFile:     tlsKeyFile,
			}

			return startMediator(parameters)
		},
	}
}

func getDBParam(s *settings) (*dbParam, error) {
	dbParam := &dbParam{}

	var err error

	dbParam.dbType, err = s.get(databaseTypeFlagName, databaseTypeEnvKey, false)
	if err != nil {
		return nil, err
	}

	dbParam.url, err = s.get(databaseURLFlagName, databaseURLEnvKey, true)
	if err != nil {
		return nil, err
	}

	dbParam.path, err = s.get(databasePathFlagName, databasePathEnvKey, true)
	if err != nil {
		return nil, err
	}

	dbParam.prefix, err = s.get(databasePrefixFlagName, databasePrefixEnvKey, true)
	if err != nil {
		return nil, err
	}

	dbTimeout, err := s.get(databaseTimeoutFlagName, databaseTimeoutEnvKey, true)
	if err != nil {
		return nil, err
	}

	if dbTimeout == "" || dbTimeout == "0" {
		dbTimeout = databaseTimeoutDefault
	}

	t, err := strconv.Atoi(dbTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db timeout %s: %w", dbTimeout, err)
	}

	dbParam.timeout = uint64(t)

	return dbParam, nil
}

func getRetryPolicy(s *settings) (resilience.RetryPolicy, error) {
	policy := resilience.DefaultRetryPolicy()

	var err error

	if policy.MaxAttempts, err = getInt(s, retryAttemptsFlagName, retryAttemptsEnvKey, policy.MaxAttempts); err != nil {
		return policy, err
	}

	if policy.InitialDelay, err = getDuration(s, retryInitialDelayFlagName, retryInitialDelayEnvKey,
		policy.InitialDelay); err != nil {
		return policy, err
	}

	if policy.MaxDelay, err = getDuration(s, retryMaxDelayFlagName, retryMaxDelayEnvKey, policy.MaxDelay); err != nil {
		return policy, err
	}

	factor, err := s.get(retryFactorFlagName, retryFactorEnvKey, true)
	if err != nil {
		return policy, err
	}

	if factor != "" {
		if policy.Factor, err = strconv.ParseFloat(factor, 64); err != nil {
			return policy, fmt.Errorf("failed to parse %s %s: %w", retryFactorFlagName, factor, err)
		}
	}

	fixed, err := s.get(retryFixedFlagName, retryFixedEnvKey, true)
	if err != nil {
		return policy, err
	}

	if fixed != "" {
		if policy.Fixed, err = strconv.ParseBool(fixed); err != nil {
			return policy, fmt.Errorf("failed to parse %s %s: %w", retryFixedFlagName, fixed, err)
		}
	}

	return policy, nil
}

func getBreakerOpts(s *settings) ([]resilience.BreakerOption, error) {
	var opts []resilience.BreakerOption

	threshold, err := getInt(s, breakerThresholdFlagName, breakerThresholdEnvKey, 0)
	if err != nil {
		return nil, err
	}

	if threshold > 0 {
		opts = append(opts, resilience.WithFailureThreshold(threshold))
	}

	reset, err := getDuration(s, breakerResetFlagName, breakerResetEnvKey, 0)
	if err != nil {
		return nil, err
	}

	if reset > 0 {
		opts = append(opts, resilience.WithResetTimeout(reset))
	}

	return opts, nil
}

func getCacheParams(s *settings) (int, time.Duration, error) {
	size, err := getInt(s, cacheSizeFlagName, cacheSizeEnvKey, 0)
	if err != nil {
		return 0, 0, err
	}

	ttl, err := getDuration(s, cacheTTLFlagName, cacheTTLEnvKey, 0)
	if err != nil {
		return 0, 0, err
	}

	return size, ttl, nil
}

func getSeed(s *settings) ([]byte, error) {
	v, err := s.get(seedFlagName, seedEnvKey, true)
	if err != nil || v == "" {
		return nil, err
	}

	seed, err := hex.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", seedFlagName, err)
	}

	return seed, nil
}

func getInt(s *settings, flagName, envKey string, def int) (int, error) {
	v, err := s.get(flagName, envKey, true)
	if err != nil || v == "" {
		return def, err
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s %s: %w", flagName, v, err)
	}

	return n, nil
}

func getDuration(s *settings, flagName, envKey string, def time.Duration) (time.Duration, error) {
	v, err := s.get(flagName, envKey, true)
	if err != nil || v == "" {
		return def, err
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s %s: %w", flagName, v, err)
	}

	return d, nil
}

func createFlags(startCmd *cobra.Command) {
	startCmd.Flags().StringP(configFlagName, "", "", configFlagUsage)
	startCmd.Flags().StringP(hostFlagName, hostFlagShorthand, "", hostFlagUsage)
	startCmd.Flags().StringP(wsHostFlagName, "", "", wsHostFlagUsage)
	startCmd.Flags().StringP(publicEndpointFlagName, publicEndpointFlagShorthand, "", publicEndpointFlagUsage)
	startCmd.Flags().StringP(tokenFlagName, tokenFlagShorthand, "", tokenFlagUsage)

	// db
	startCmd.Flags().StringP(databaseTypeFlagName, databaseTypeFlagShorthand, "", databaseTypeFlagUsage)
	startCmd.Flags().StringP(databaseURLFlagName, databaseURLFlagShorthand, "", databaseURLFlagUsage)
	startCmd.Flags().StringP(databasePathFlagName, "", "", databasePathFlagUsage)
	startCmd.Flags().StringP(databasePrefixFlagName, databasePrefixFlagShorthand, "", databasePrefixFlagUsage)
	startCmd.Flags().StringP(databaseTimeoutFlagName, "", "", databaseTimeoutFlagUsage)

	// resilience
	startCmd.Flags().StringP(breakerThresholdFlagName, "", "", breakerThresholdFlagUsage)
	startCmd.Flags().StringP(breakerResetFlagName, "", "", breakerResetFlagUsage)
	startCmd.Flags().StringP(retryAttemptsFlagName, "", "", retryAttemptsFlagUsage)
	startCmd.Flags().StringP(retryInitialDelayFlagName, "", "", retryInitialDelayFlagUsage)
	startCmd.Flags().StringP(retryMaxDelayFlagName, "", "", retryMaxDelayFlagUsage)
	startCmd.Flags().StringP(retryFactorFlagName, "", "", retryFactorFlagUsage)
	startCmd.Flags().StringP(retryFixedFlagName, "", "", retryFixedFlagUsage)

	// resolver cache
	startCmd.Flags().StringP(cacheSizeFlagName, "", "", cacheSizeFlagUsage)
	startCmd.Flags().StringP(cacheTTLFlagName, "", "", cacheTTLFlagUsage)

	startCmd.Flags().StringP(seedFlagName, "", "", seedFlagUsage)
	startCmd.Flags().StringP(logLevelFlagName, "", "", logLevelFlagUsage)
	startCmd.Flags().StringP(logFormatFlagName, "", "", logFormatFlagUsage)
	startCmd.Flags().StringP(tlsCertFileFlagName, tlsCertFileFlagShorthand, "", tlsCertFileFlagUsage)
	startCmd.Flags().StringP(tlsKeyFileFlagName, tlsKeyFileFlagShorthand, "", tlsKeyFileFlagUsage)
}

func getUserSetVar(cmd *cobra.Command, flagName, envKey string, isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	if isOptional || isSet {
		return value, nil
	}

	return "", errors.New("Neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set.")
}

func setLogLevel(logLevel string) error {
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
		}

		log.SetLevel("", level)

		logger.Infof("logger level set to %s", logLevel)
	}

	return nil
}

func validateAuthorizationBearerToken(w http.ResponseWriter, r *http.Request, token string) bool {
	actHdr := r.Header.Get("Authorization")
	expHdr := "Bearer " + token

	if subtle.ConstantTimeCompare([]byte(actHdr), []byte(expHdr)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Unauthorised.\n")) // nolint:gosec,errcheck

		return false
	}

	return true
}

func authorizationMiddleware(token string) mux.MiddlewareFunc {
	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validateAuthorizationBearerToken(w, r, token) {
				next.ServeHTTP(w, r)
			}
		})
	}

	return middleware
}

func startMediator(parameters *mediatorParameters) error {
	if parameters.host == "" {
		return errMissingHost
	}

	m, err := createMediator(parameters)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warnf("failed to close mediator: %s", closeErr)
		}
	}()

	router, err := createRouter(m, parameters)
	if err != nil {
		return fmt.Errorf("failed to start mediator rest on port [%s], cause:  %w", parameters.host, err)
	}

	if parameters.wsHost != "" {
		inbound, wsErr := ws.NewInbound(parameters.wsHost, "")
		if wsErr != nil {
			return fmt.Errorf("failed to start websocket ingress: %w", wsErr)
		}

		if wsErr = inbound.Start(m.InboundHandler()); wsErr != nil {
			return wsErr
		}

		defer func() {
			if stopErr := inbound.Stop(); stopErr != nil {
				logger.Warnf("failed to stop websocket ingress: %s", stopErr)
			}
		}()

		logger.Infof("Starting websocket ingress on host [%s]", parameters.wsHost)
	}

	logger.Infof("Starting mediator %s on host [%s]", m.MediatorDID(), parameters.host)

	err = parameters.server.ListenAndServe(parameters.host, router, parameters.tlsCertFile, parameters.tlsKeyFile)
	if err != nil {
		return fmt.Errorf("failed to start mediator rest on port [%s], cause:  %w", parameters.host, err)
	}

	return nil
}

func createRouter(m *mediator.Mediator, parameters *mediatorParameters) (http.Handler, error) {
	controller, err := restapi.New(m,
		restapi.WithPublicEndpoint(parameters.publicEndpoint, "didcomm/v2"))
	if err != nil {
		return nil, err
	}

	ingress, err := didcommhttp.NewInboundHandler(m.InboundHandler())
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.Handle("/", ingress).Methods(http.MethodPost)

	for _, handler := range controller.PublicOperations() {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	if parameters.token != "" {
		admin := router.NewRoute().Subrouter()
		admin.Use(authorizationMiddleware(parameters.token))

		for _, handler := range controller.AdminOperations() {
			admin.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
		}
	} else {
		logger.Warnf("no %s set, admin endpoints are disabled", tokenFlagName)
	}

	return cors.New(
		cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodHead},
			AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "Authorization"},
		},
	).Handler(router), nil
}

func createMediator(parameters *mediatorParameters) (*mediator.Mediator, error) {
	storePro, err := createStoreProviders(parameters)
	if err != nil {
		return nil, err
	}

	m, err := mediator.New(
		mediator.WithStoreProvider(storePro),
		mediator.WithStorePrefix(parameters.dbParam.prefix),
		mediator.WithRetryPolicy(parameters.retryPolicy),
		mediator.WithBreakerOptions(parameters.breakerOpts...),
		mediator.WithResolverCache(parameters.cacheSize, parameters.cacheTTL),
		mediator.WithMediatorSeed(parameters.seed),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start mediator rest on port [%s], failed to initialize mediator :  %w",
			parameters.host, err)
	}

	return m, nil
}

func createStoreProviders(parameters *mediatorParameters) (storage.Provider, error) {
	provider, supported := supportedStorageProviders[strings.ToLower(parameters.dbParam.dbType)]
	if !supported {
		return nil, fmt.Errorf("database type not set to a valid type." +
			" run start --help to see the available options")
	}

	var store storage.Provider

	err := backoff.RetryNotify(
		func() error {
			var openErr error
			store, openErr = provider(parameters.dbParam)

			return openErr
		},
		backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), parameters.dbParam.timeout),
		func(retryErr error, t time.Duration) {
			logger.Warnf(
				"failed to connect to storage, will sleep for %s before trying again : %s\n",
				t, retryErr)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage at %s : %w", parameters.dbParam.url, err)
	}

	return store, nil
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/config"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/model"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/protocol/mediation"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/transport"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/restapi/operation/admin"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/restapi/operation/wellknown"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/vdr"
)

const (
	testToken = "s3cret"
	seedHex   = "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"
)

// mockServer hands the router to serve instead of listening.
type mockServer struct {
	host  string
	serve func(handler http.Handler)
	err   error
}

func (s *mockServer) ListenAndServe(host string, handler http.Handler, certFile, keyFile string) error {
	s.host = host

	if s.serve != nil {
		s.serve(handler)
	}

	return s.err
}

func run(t *testing.T, server server, args ...string) error {
	t.Helper()

	startCmd, err := Cmd(server)
	require.NoError(t, err)

	startCmd.SetArgs(args)

	return startCmd.Execute()
}

func TestStartCmdContents(t *testing.T) {
	startCmd, err := Cmd(&mockServer{})
	require.NoError(t, err)

	require.Equal(t, "start", startCmd.Use)
	require.Equal(t, "Start a mediator", startCmd.Short)
	require.Equal(t, "Start a DIDComm mediator with its REST endpoints", startCmd.Long)

	checkFlagPropertiesCorrect(t, startCmd, hostFlagName, hostFlagShorthand, hostFlagUsage, "")
	checkFlagPropertiesCorrect(t, startCmd, tokenFlagName, tokenFlagShorthand, tokenFlagUsage, "")
	checkFlagPropertiesCorrect(t, startCmd, databaseTypeFlagName, databaseTypeFlagShorthand, databaseTypeFlagUsage, "")
	checkFlagPropertiesCorrect(t, startCmd, retryFactorFlagName, "", retryFactorFlagUsage, "")
}

func checkFlagPropertiesCorrect(t *testing.T, cmd *cobra.Command, flagName,
	flagShorthand, flagUsage, expectedVal string) {
	flag := cmd.Flag(flagName)

	require.NotNil(t, flag)
	require.Equal(t, flagName, flag.Name)
	require.Equal(t, flagShorthand, flag.Shorthand)
	require.Equal(t, flagUsage, flag.Usage)
	require.Equal(t, expectedVal, flag.Value.String())

	flagAnnotations := flag.Annotations
	require.Nil(t, flagAnnotations)
}

func TestStartMediatorRequests(t *testing.T) {
	var checked bool

	server := &mockServer{serve: func(router http.Handler) {
		checked = true

		do := func(method, path, contentType, token string, body []byte) *httptest.ResponseRecorder {
			req := httptest.NewRequest(method, path, bytes.NewReader(body))
			if contentType != "" {
				req.Header.Set("Content-Type", contentType)
			}

			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			return rr
		}

		require.Equal(t, http.StatusOK, do(http.MethodGet, wellknown.HealthPath, "", "", nil).Code)

		rr := do(http.MethodGet, wellknown.DIDDocumentPath, "", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var doc vdr.Document
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
		require.True(t, strings.HasPrefix(doc.ID, "did:key:z6Mk"))
		require.Equal(t, "https://mediator.example.com", doc.Service[0].ServiceEndpoint)

		request := model.NewMessage(mediation.MediateRequestMsgType, nil)
		request.From = "did:example:alice"
		request.To = []string{doc.ID}

		envelope, err := json.Marshal(request)
		require.NoError(t, err)

		rr = do(http.MethodPost, "/", transport.MediaTypePlaintext, "", envelope)
		require.Equal(t, http.StatusOK, rr.Code)
		require.Contains(t, rr.Body.String(), mediation.MediateGrantMsgType)

		rr = do(http.MethodPost, "/", "application/json", "", envelope)
		require.Equal(t, http.StatusUnsupportedMediaType, rr.Code)

		require.Equal(t, http.StatusUnauthorized, do(http.MethodGet, admin.ConnectionsPath, "", "", nil).Code)
		require.Equal(t, http.StatusUnauthorized, do(http.MethodGet, admin.ConnectionsPath, "", "wrong", nil).Code)

		rr = do(http.MethodGet, admin.ConnectionsPath+"/did:example:alice", "", testToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		require.Contains(t, rr.Body.String(), "did:example:alice")
	}}

	err := run(t, server,
		"--"+hostFlagName, "localhost:8080",
		"--"+databaseTypeFlagName, databaseTypeMemOption,
		"--"+tokenFlagName, testToken,
		"--"+publicEndpointFlagName, "https://mediator.example.com",
		"--"+seedFlagName, seedHex,
		"--"+retryAttemptsFlagName, "2",
		"--"+retryInitialDelayFlagName, "10ms",
		"--"+retryMaxDelayFlagName, "50ms",
		"--"+retryFactorFlagName, "1.5",
		"--"+retryFixedFlagName, "false",
		"--"+breakerThresholdFlagName, "3",
		"--"+breakerResetFlagName, "5s",
		"--"+cacheSizeFlagName, "16",
		"--"+cacheTTLFlagName, "1m",
		"--"+logLevelFlagName, "DEBUG",
	)
	require.NoError(t, err)
	require.True(t, checked)
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	server := &mockServer{serve: func(router http.Handler) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, admin.ConnectionsPath, nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}}

	require.NoError(t, run(t, server, "--"+hostFlagName, "localhost:8080", "--"+databaseTypeFlagName, "mem"))
}

func TestStartCmdWithEnvAndConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "mediator.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(
		"host-url: localhost:9090\n"+
			"database-type: leveldb\n"+
			"database-path: "+filepath.Join(dir, "db")+"\n"+
			"database-prefix: tenant_\n"+
			"log-format: json\n"), 0o600))

	t.Run("config file supplies values", func(t *testing.T) {
		server := &mockServer{}
		require.NoError(t, run(t, server, "--"+configFlagName, cfg))
		require.Equal(t, "localhost:9090", server.host)
	})

	t.Run("env vars win over the file", func(t *testing.T) {
		t.Setenv(envPrefix+"CONFIG", cfg)
		t.Setenv(hostEnvKey, "localhost:7070")

		server := &mockServer{}
		require.NoError(t, run(t, server))
		require.Equal(t, "localhost:7070", server.host)
	})

	t.Run("flags win over env vars", func(t *testing.T) {
		t.Setenv(hostEnvKey, "localhost:7070")

		server := &mockServer{}
		require.NoError(t, run(t, server, "--"+configFlagName, cfg, "--"+hostFlagName, "localhost:6060"))
		require.Equal(t, "localhost:6060", server.host)
	})

	t.Run("missing config file", func(t *testing.T) {
		err := run(t, &mockServer{}, "--"+configFlagName, filepath.Join(dir, "missing.yaml"))
		require.ErrorContains(t, err, "loading config file failed")
	})

	t.Run("misspelt key in config file", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("host-url: localhost:9090\ndatabse-type: leveldb\n"), 0o600))

		err := run(t, &mockServer{}, "--"+configFlagName, bad)
		require.ErrorIs(t, err, config.ErrUnknownKey)
		require.ErrorContains(t, err, "databse-type")
	})
}

func TestStartCmdErrors(t *testing.T) {
	base := []string{"--" + hostFlagName, "localhost:8080", "--" + databaseTypeFlagName, "mem"}

	for name, tc := range map[string]struct {
		args []string
		err  string
	}{
		"no host":          {[]string{"--" + databaseTypeFlagName, "mem"}, hostFlagName},
		"no database type": {[]string{"--" + hostFlagName, "localhost:8080"}, databaseTypeFlagName},
		"bad database":     {[]string{"--" + hostFlagName, "h", "--" + databaseTypeFlagName, "couch"}, "valid type"},
		"bad log level":    {append([]string{"--" + logLevelFlagName, "LOUD"}, base...), "log level"},
		"bad timeout":      {append([]string{"--" + databaseTimeoutFlagName, "soon"}, base...), "db timeout"},
		"bad attempts":     {append([]string{"--" + retryAttemptsFlagName, "x"}, base...), retryAttemptsFlagName},
		"bad delay":        {append([]string{"--" + retryInitialDelayFlagName, "5"}, base...), retryInitialDelayFlagName},
		"bad factor":       {append([]string{"--" + retryFactorFlagName, "x"}, base...), retryFactorFlagName},
		"bad fixed":        {append([]string{"--" + retryFixedFlagName, "x"}, base...), retryFixedFlagName},
		"bad threshold":    {append([]string{"--" + breakerThresholdFlagName, "x"}, base...), breakerThresholdFlagName},
		"bad reset":        {append([]string{"--" + breakerResetFlagName, "x"}, base...), breakerResetFlagName},
		"bad cache size":   {append([]string{"--" + cacheSizeFlagName, "x"}, base...), cacheSizeFlagName},
		"bad cache ttl":    {append([]string{"--" + cacheTTLFlagName, "x"}, base...), cacheTTLFlagName},
		"bad seed":         {append([]string{"--" + seedFlagName, "zz"}, base...), seedFlagName},
		"short seed":       {append([]string{"--" + seedFlagName, "abcd"}, base...), "initialize mediator"},
	} {
		err := run(t, &mockServer{}, tc.args...)
		require.Error(t, err, name)
		require.Contains(t, err.Error(), tc.err, name)
	}

	t.Run("server fails", func(t *testing.T) {
		err := run(t, &mockServer{err: errors.New("address in use")}, base...)
		require.ErrorContains(t, err, "address in use")
	})

	t.Run("empty host", func(t *testing.T) {
		require.ErrorIs(t, startMediator(&mediatorParameters{}), errMissingHost)
	})
}

func TestCreateStoreProviders(t *testing.T) {
	for _, dbType := range []string{databaseTypeMemOption, databaseTypeLevelDBOption, databaseTypeSQLiteOption} {
		p, err := createStoreProviders(&mediatorParameters{dbParam: &dbParam{
			dbType: dbType,
			path:   filepath.Join(t.TempDir(), "store"),
		}})
		require.NoError(t, err, dbType)
		require.NoError(t, p.Close())
	}

	_, err := createStoreProviders(&mediatorParameters{dbParam: &dbParam{
		dbType: databaseTypeMYSQLDBOption,
		url:    "not a dsn",
	}})
	require.ErrorContains(t, err, "failed to connect to storage")
}

func TestWebSocketIngress(t *testing.T) {
	server := &mockServer{serve: func(http.Handler) {
		time.Sleep(10 * time.Millisecond)
	}}

	require.NoError(t, run(t, server,
		"--"+hostFlagName, "localhost:8080",
		"--"+databaseTypeFlagName, "mem",
		"--"+wsHostFlagName, "localhost:0"))
}

func TestAuthorizationMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := authorizationMiddleware(testToken)(next)

	for token, status := range map[string]int{"": http.StatusUnauthorized, "x": http.StatusUnauthorized,
		testToken: http.StatusTeapot} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equal(t, status, rr.Code, token)
	}
}

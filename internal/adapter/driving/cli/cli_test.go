package cli_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AustralianBioCommons/gen3metadata/internal/adapter/driving/cli"
	"github.com/AustralianBioCommons/gen3metadata/internal/config"
	"github.com/AustralianBioCommons/gen3metadata/internal/domain/model"
)

const exportBody = `{"data": [
	{"submitter_id": "subject_1", "project": {"code": "AusDiab"}, "age": 54},
	{"submitter_id": "subject_2", "sex": "female"}
]}`

// fakeCommons serves the access token and export endpoints.
func fakeCommons(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /user/credentials/cdis/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"access_token": "fake_token"})
	})
	mux.HandleFunc("GET /api/v0/submission/AusDiab/cohort/export/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "bearer fake_token" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "subject", r.URL.Query().Get("node_label"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(exportBody))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// writeKeyFile writes a relaxed key file whose api_key names issuer.
func writeKeyFile(t *testing.T, issuer string) string {
	t.Helper()

	enc := base64.RawURLEncoding
	payload, err := json.Marshal(map[string]string{"iss": issuer})
	require.NoError(t, err)
	apiKey := enc.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`)) + "." +
		enc.EncodeToString(payload) + "." + enc.EncodeToString([]byte("sig"))

	path := filepath.Join(t.TempDir(), "credentials.json")
	content := "{api_key: " + apiKey + ", key_id: b9042701-b08f-40da-89a3-753be4ed1229}"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, cfg *config.Config, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := cli.NewRootCommand(cfg, &stdout, &stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func testConfig(keyFile string) *config.Config {
	return &config.Config{KeyFile: keyFile, APIVersion: "v0", LogLevel: "info"}
}

func TestURLCommand(t *testing.T) {
	keyFile := writeKeyFile(t, "https://data.test.biocommons.org.au/user")

	stdout, _, err := execute(t, testConfig(keyFile), "url")

	require.NoError(t, err)
	assert.Equal(t, "https://data.test.biocommons.org.au\n", stdout)
}

func TestURLCommand_APIURLFlagWins(t *testing.T) {
	keyFile := writeKeyFile(t, "https://data.test.biocommons.org.au/user")

	stdout, _, err := execute(t, testConfig(keyFile), "url", "--api-url", "https://other.example.org")

	require.NoError(t, err)
	assert.Equal(t, "https://other.example.org\n", stdout)
}

func TestURLCommand_MissingKeyFile(t *testing.T) {
	_, _, err := execute(t, testConfig(filepath.Join(t.TempDir(), "absent.json")), "url")

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAuthCommand(t *testing.T) {
	server := fakeCommons(t)
	keyFile := writeKeyFile(t, server.URL+"/user")

	stdout, stderr, err := execute(t, testConfig(keyFile), "auth")

	require.NoError(t, err)
	assert.Equal(t, "authenticated against "+server.URL+"\n", stdout)
	assert.NotContains(t, stdout, "fake_token")
	assert.NotContains(t, stderr, "fake_token")
}

func TestAuthCommand_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)
	keyFile := writeKeyFile(t, server.URL+"/user")

	_, stderr, err := execute(t, testConfig(keyFile), "auth")

	assert.Equal(t, http.StatusUnauthorized, model.StatusCode(err))
	assert.True(t, cli.Logged(err), "authentication failures are logged by the session")
	assert.Equal(t, 1, strings.Count(stderr, "HTTP error occurred during authentication"))
	assert.Contains(t, stderr, "status_code=401")
}

func TestFetchCommand_JSON(t *testing.T) {
	server := fakeCommons(t)
	keyFile := writeKeyFile(t, server.URL+"/user")

	stdout, stderr, err := execute(t, testConfig(keyFile), "fetch", "AusDiab", "cohort", "subject")

	require.NoError(t, err)
	assert.JSONEq(t, exportBody, stdout)
	assert.Contains(t, stderr, "data fetched and stored")
}

func TestFetchCommand_CSV(t *testing.T) {
	server := fakeCommons(t)
	keyFile := writeKeyFile(t, server.URL+"/user")

	stdout, _, err := execute(t, testConfig(keyFile), "fetch", "AusDiab", "cohort", "subject", "--format", "csv")

	require.NoError(t, err)
	assert.Equal(t,
		"submitter_id,project.code,age,sex\n"+
			"subject_1,AusDiab,54,\n"+
			"subject_2,,,female\n",
		stdout,
	)
}

func TestFetchCommand_Table(t *testing.T) {
	server := fakeCommons(t)
	keyFile := writeKeyFile(t, server.URL+"/user")

	stdout, _, err := execute(t, testConfig(keyFile), "fetch", "AusDiab", "cohort", "subject", "-f", "table")

	require.NoError(t, err)
	for _, want := range []string{"submitter_id", "project.code", "subject_1", "subject_2", "female"} {
		assert.Contains(t, stdout, want)
	}
}

func TestFetchCommand_OutFile(t *testing.T) {
	server := fakeCommons(t)
	keyFile := writeKeyFile(t, server.URL+"/user")
	out := filepath.Join(t.TempDir(), "subject.csv")

	stdout, _, err := execute(t, testConfig(keyFile), "fetch", "AusDiab", "cohort", "subject", "-f", "csv", "-o", out)

	require.NoError(t, err)
	assert.Empty(t, stdout)
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(got), "subject_1,AusDiab,54,")
}

func TestFetchCommand_DB(t *testing.T) {
	server := fakeCommons(t)
	keyFile := writeKeyFile(t, server.URL+"/user")
	dbPath := filepath.Join(t.TempDir(), "exports.db")

	_, stderr, err := execute(t, testConfig(keyFile), "fetch", "AusDiab", "cohort", "subject", "--db", dbPath)

	require.NoError(t, err)
	assert.Contains(t, stderr, "table exported")
	assert.FileExists(t, dbPath)
}

func TestFetchCommand_UnknownFormat(t *testing.T) {
	server := fakeCommons(t)
	keyFile := writeKeyFile(t, server.URL+"/user")

	_, _, err := execute(t, testConfig(keyFile), "fetch", "AusDiab", "cohort", "subject", "-f", "xml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}

func TestFetchCommand_NotFound(t *testing.T) {
	server := fakeCommons(t)
	keyFile := writeKeyFile(t, server.URL+"/user")

	_, stderr, err := execute(t, testConfig(keyFile), "fetch", "AusDiab", "cohort", "subject", "--api-version", "v9")

	assert.Equal(t, http.StatusNotFound, model.StatusCode(err))
	assert.True(t, cli.Logged(err))
	assert.Equal(t, 1, strings.Count(stderr, "fetch failed"))
	assert.Contains(t, stderr, "status_code=404")
}

func TestFetchCommand_LogsExportStatus(t *testing.T) {
	server := fakeCommons(t)
	keyFile := writeKeyFile(t, server.URL+"/user")

	_, stderr, err := execute(t, testConfig(keyFile), "fetch", "AusDiab", "cohort", "subject")

	require.NoError(t, err)
	assert.Contains(t, stderr, "status_code=200")
}

func TestURLCommand_ErrorsAreNotMarkedLogged(t *testing.T) {
	_, _, err := execute(t, testConfig(filepath.Join(t.TempDir(), "absent.json")), "url")

	require.Error(t, err)
	assert.False(t, cli.Logged(err))
}

func TestExportsCommand(t *testing.T) {
	server := fakeCommons(t)
	keyFile := writeKeyFile(t, server.URL+"/user")
	dbPath := filepath.Join(t.TempDir(), "exports.db")

	_, _, err := execute(t, testConfig(keyFile), "fetch", "AusDiab", "cohort", "subject", "--db", dbPath)
	require.NoError(t, err)

	stdout, _, err := execute(t, testConfig(keyFile), "exports", "--db", dbPath)

	require.NoError(t, err)
	assert.Contains(t, stdout, "AusDiab/cohort/subject")
	assert.Contains(t, stdout, "gen3_ausdiab_cohort_subject_")
}

func TestExportsCommand_DBFromConfig(t *testing.T) {
	cfg := testConfig("unused.json")
	cfg.DBPath = filepath.Join(t.TempDir(), "empty.db")

	stdout, _, err := execute(t, cfg, "exports")

	require.NoError(t, err)
	assert.Equal(t, "no exports recorded\n", stdout)
}

func TestExportsCommand_RequiresDB(t *testing.T) {
	_, _, err := execute(t, testConfig("unused.json"), "exports")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--db")
}

func TestFetchCommand_RequiresThreeArgs(t *testing.T) {
	_, _, err := execute(t, testConfig("unused.json"), "fetch", "AusDiab", "cohort")

	assert.Error(t, err)
}

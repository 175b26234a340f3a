package graphdb

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const stockConf = `# template config
#dbms.connector.bolt.listen_address=:7687
#dbms.connector.http.listen_address=:7474
dbms.connector.https.enabled=true
dbms.memory.heap.max_size=1G
`

func TestRewriteListenPorts(t *testing.T) {
	confPath := filepath.Join(t.TempDir(), "neo4j.conf")
	if err := os.WriteFile(confPath, []byte(stockConf), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := RewriteListenPorts(confPath, 7691, 7692); err != nil {
		t.Fatalf("RewriteListenPorts: %v", err)
	}

	got, err := os.ReadFile(confPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	conf := string(got)

	for _, want := range []string{
		"dbms.connector.bolt.listen_address=:7691",
		"dbms.connector.http.listen_address=:7692",
		"dbms.connector.https.enabled=false",
		"dbms.memory.heap.max_size=1G",
	} {
		if !strings.Contains(conf, want) {
			t.Errorf("rewritten config missing %q:\n%s", want, conf)
		}
	}
	if strings.Contains(conf, "#dbms.connector.bolt") {
		t.Errorf("default bolt line survived rewrite:\n%s", conf)
	}
}

func TestRewriteListenPortsMissingFile(t *testing.T) {
	err := RewriteListenPorts(filepath.Join(t.TempDir(), "absent.conf"), 1, 2)
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

// compose reads a composition tree from a source file and either
// prints it or its encoded document, renders its documentation, or
// deploys it to the action platform API at -apihost, the way sheens' cmd/spectool
// is a single flag-driven front end onto one core operation at a
// time.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jsccast/yaml"

	"github.com/yarikc/composer/ast"
	"github.com/yarikc/composer/bundle"
	"github.com/yarikc/composer/deploy"
	"github.com/yarikc/composer/deploy/store/boltstore"
	"github.com/yarikc/composer/docs"
)

func main() {
	var (
		deployName = flag.String("deploy", "", "deploy the composition as this qualified action name")
		encodeName = flag.String("encode", "", "print the encoded document under this name instead of deploying it")
		apihost    = flag.String("apihost", "", "API host to deploy to (required with -deploy)")
		auth       = flag.String("auth", "", "HTTP basic auth as user:pass")
		insecure   = flag.Bool("insecure", false, "skip TLS certificate verification")
		dbPath     = flag.String("db", "compose-deploy.db", "bbolt file recording what -deploy last pushed, to diff against on redeploy")
		renderDoc  = flag.Bool("doc", false, "render the composition's documentation as HTML instead of JSON")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: compose [flags] <source-file>")
		os.Exit(2)
	}
	if *deployName != "" && *encodeName != "" {
		fmt.Fprintln(os.Stderr, "compose: -deploy and -encode are mutually exclusive")
		os.Exit(2)
	}

	c, err := load(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	switch {
	case *deployName != "":
		if *apihost == "" {
			log.Fatal("compose: -apihost is required with -deploy")
		}
		doc, err := bundle.Encode(c, *deployName)
		if err != nil {
			log.Fatal(err)
		}
		if err := runDeploy(*apihost, *auth, *dbPath, *insecure, doc); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("deployed %s\n", doc.Name)

	case *encodeName != "":
		doc, err := bundle.Encode(c, *encodeName)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(doc)

	case *renderDoc:
		doc, err := bundle.Encode(c, "_")
		if err != nil {
			log.Fatal(err)
		}
		os.Stdout.Write(docs.RenderHTML(doc))

	default:
		printJSON(c.Tree)
	}
}

func load(path string) (*ast.Composition, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var node ast.Node
	if err := yaml.Unmarshal(bs, &node); err != nil {
		return nil, err
	}
	return &ast.Composition{Tree: &node}, nil
}

func runDeploy(apihost, auth, dbPath string, insecure bool, doc *bundle.Document) error {
	user, pass := splitAuth(auth)
	client, err := deploy.NewClient(apihost, user, pass, insecure)
	if err != nil {
		return err
	}
	st, err := boltstore.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return deploy.New(client, st).Deploy(context.Background(), doc)
}

func splitAuth(auth string) (string, string) {
	for i := 0; i < len(auth); i++ {
		if auth[i] == ':' {
			return auth[:i], auth[i+1:]
		}
	}
	return auth, ""
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatal(err)
	}
}

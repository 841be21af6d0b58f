// Command badger_inspect dumps the raw rows of a local campus-chat
// database. Debugging aid; the key layout is documented in repositories.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

const valuePreviewLen = 96

func main() {
	dbPath := flag.String("db", "", "Path to the badger database")
	prefix := flag.String("prefix", "msg:", "Key prefix to scan (msg:, room:, dm:, profile:, flag:, ann:)")
	flag.Parse()

	if *dbPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Value"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				table.Append([]string{string(item.Key()), preview(v)})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while scanning: ", err)
	}
	table.Render()
}

// preview compacts JSON values and truncates long ones so the table stays
// readable. Non-JSON values (pointer keys, flags) print as-is.
func preview(v []byte) string {
	out := string(v)
	var compact map[string]any
	if err := json.Unmarshal(v, &compact); err == nil {
		if b, err := json.Marshal(compact); err == nil {
			out = string(b)
		}
	}
	runes := []rune(out)
	if len(runes) > valuePreviewLen {
		return fmt.Sprintf("%s… (%d bytes)", string(runes[:valuePreviewLen]), len(v))
	}
	return out
}

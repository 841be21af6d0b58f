// Command viewer renders a room's conversation from the local store as a
// terminal table, role badges colored.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"campus-chat/domain"
	"campus-chat/projection"
	"campus-chat/repositories"
)

func main() {
	dbPath := flag.String("db", "", "Path to the badger database")
	roomID := flag.String("room", "", "Room id to render")
	userID := flag.String("user", "", "Current user id, for own/other classification")
	flag.Parse()

	if *dbPath == "" || *roomID == "" {
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

	repository := repositories.NewMessageRepository(db, logs.GetLoggerFromString("ERROR"), nil)
	messages, _, err := repository.List(domain.RoomID(*roomID), nil)
	if err != nil {
		log.Fatal("Error while listing messages: ", err)
	}
	// List returns newest first; the timeline reads oldest first.
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Author", "Badge", "Content", "Reply"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, group := range projection.Render(messages, *userID) {
		author := group.AuthorName
		if group.Own {
			author = color.Bold.Sprint(author)
		}
		reply := ""
		if group.Reply != nil {
			reply = fmt.Sprintf("↳ %s: %s", group.Reply.AuthorName, group.Reply.Excerpt)
		}
		table.Append([]string{
			group.SentAt.Local().Format(time.TimeOnly),
			author,
			colorBadge(group.Badge),
			group.Content,
			reply,
		})
	}
	table.Render()
}

func colorBadge(badge string) string {
	switch badge {
	case "ADMIN":
		return color.Red.Sprint(badge)
	case "SENIOR":
		return color.Yellow.Sprint(badge)
	case "STUDENT":
		return color.Green.Sprint(badge)
	default:
		return badge
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/reliefdesk/reliefdesk-backend/internal/aws"
	"github.com/reliefdesk/reliefdesk-backend/internal/config"
	"github.com/reliefdesk/reliefdesk-backend/internal/database"
	"github.com/reliefdesk/reliefdesk-backend/internal/timeline"
)

var (
	buildPtr = flag.String("build", "", "Request id to archive now")
	getPtr   = flag.String("get", "", "Request id whose archive to download")
	linkPtr  = flag.String("link", "", "Request id to generate a presigned URL for")
	listPtr  = flag.Bool("list", false, "List archived timelines")
)

func main() {
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	s3Service, err := aws.NewS3Service(ctx, cfg.AWS)
	if err != nil {
		log.Fatalf("Failed to initialize S3 service: %v", err)
	}

	// create bucket if it doesn't exist (for localstack)
	if cfg.AWS.EndpointURL != "" {
		if err := s3Service.EnsureBucket(ctx); err != nil {
			log.Fatalf("Failed to ensure bucket exists: %v", err)
		}
	}

	switch {
	case *buildPtr != "":
		id := parseID(*buildPtr)
		db, err := database.New(ctx, &cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		key, err := timeline.NewArchiver(database.NewRequestStore(db), s3Service).Archive(ctx, id)
		if err != nil {
			log.Fatalf("Failed to archive timeline: %v", err)
		}
		fmt.Printf("Archived %s to %s/%s\n", id, s3Service.Bucket(), key)

	case *getPtr != "":
		key := timeline.Key(parseID(*getPtr))
		fmt.Printf("Retrieving %s from %s...\n", key, s3Service.Bucket())

		body, err := s3Service.GetObject(ctx, key)
		if err != nil {
			log.Fatalf("Failed to get archive: %v", err)
		}
		defer body.Close()

		name := strings.TrimPrefix(key, "timelines/")
		outFile, err := os.Create(name)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer outFile.Close()

		if _, err := io.Copy(outFile, body); err != nil {
			log.Fatalf("Failed to save archive: %v", err)
		}
		fmt.Printf("Archive saved to %s\n", name)

	case *linkPtr != "":
		key := timeline.Key(parseID(*linkPtr))
		url, err := s3Service.PresignGet(ctx, key, 15*time.Minute)
		if err != nil {
			log.Fatalf("Failed to generate presigned URL: %v", err)
		}
		fmt.Printf("Presigned URL for %s (expires in 15m):\n%s\n", key, url)

	case *listPtr:
		objects, err := s3Service.ListObjects(ctx, "timelines/")
		if err != nil {
			log.Fatalf("Failed to list archives: %v", err)
		}
		if len(objects) == 0 {
			fmt.Println("No archives found.")
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Key", "Size", "Last Modified"})
		for _, obj := range objects {
			size := int64(0)
			if obj.Size != nil {
				size = *obj.Size
			}
			modified := ""
			if obj.LastModified != nil {
				modified = obj.LastModified.Format(time.RFC3339)
			}
			t.AppendRow(table.Row{*obj.Key, size, modified})
		}
		t.Render()

	default:
		flag.Usage()
	}
}

func parseID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		log.Fatalf("Invalid request id %q: %v", s, err)
	}
	return id
}

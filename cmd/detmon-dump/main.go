package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"detmon-go/internal/output"
)

func main() {
	var (
		path  = flag.String("path", "", "Path to a result log .bin file")
		limit = flag.Int("limit", 0, "Max number of records to dump (0 for all)")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}

	records, err := output.ReadLog(*path, *limit)
	if err != nil {
		log.Fatalf("read result log: %v", err)
	}

	alarms := 0
	for i, rec := range records {
		pretty, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			log.Printf("record %d: JSON encode error: %v", i, err)
			continue
		}
		log.Printf("record %d frame=%d written=%s", i, rec.FrameIndex,
			time.Unix(0, rec.UnixNano).Format(time.RFC3339Nano))
		fmt.Println(string(pretty))
		if rec.Alarmed {
			alarms++
		}
	}

	fmt.Printf("summary: records=%d alarms=%d\n", len(records), alarms)
}

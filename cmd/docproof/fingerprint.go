package main

import (
	"fmt"
	"os"

	"github.com/ruralcare/docproof/internal/fingerprint"
	"github.com/ruralcare/docproof/internal/ocr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runFingerprint(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("exact:   %s\n", fingerprint.Fingerprint(data))

	contentFP, err := fingerprint.ContentFingerprint(data)
	if err != nil {
		return err
	}
	if contentFP == "" {
		fmt.Println("content: (no embedded images)")
	} else {
		fmt.Printf("content: %s\n", contentFP)
	}

	engine := fingerprint.New(ocr.Noop{}, fingerprint.Policy{}, zap.NewNop())
	isScan, stats, err := engine.ClassifyScan(data)
	if err != nil {
		return err
	}
	fmt.Printf("scanned: %v (pages %d, image-heavy %d, images %d, text chars %d)\n",
		isScan, stats.Pages, stats.ImageHeavy, stats.TotalImages, stats.TotalTextChars)
	return nil
}

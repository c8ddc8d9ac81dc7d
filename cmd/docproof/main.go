package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ruralcare/docproof/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docproof",
	Short: "RuralCare document verification CLI",
	Long: `docproof is the command-line interface for the RuralCare document
verification service.

It fingerprints PDF documents locally, verifies uploads against the
anchored records of a verifier service, and issues new anchored documents.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.docproof")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.docproof/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "verifier service URL (default http://localhost:8080)")

	rootCmd.AddCommand(fingerprintCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(anchorCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() (*client.Client, error) {
	return client.New(serverURL, client.WithTimeout(60*time.Second))
}

// ── verify ───────────────────────────────────────────────────────────────────

var (
	verifySubjectID string
	verifyFormat    string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <document.pdf>",
	Short: "Verify a document against its anchored record",
	Long: `Verify uploads a PDF to the verifier service and prints the decision.

The subject id is recovered from the document text when not given:

  docproof verify prescription.pdf
  docproof verify --subject-id 0a1b2c3d-... scan.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifySubjectID, "subject-id", "", "Subject id to verify against (recovered from the document when empty)")
	verifyCmd.Flags().StringVar(&verifyFormat, "format", "text", "Output format: text or json")
}

func runVerify(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	res, err := c.Verify(context.Background(), data, verifySubjectID)
	if err != nil {
		return err
	}

	if verifyFormat == "json" {
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	verdict := "NOT VERIFIED"
	if res.Verified {
		verdict = "VERIFIED"
	}
	fmt.Printf("%s (method: %s)\n", verdict, res.Method)
	fmt.Printf("  uploaded fingerprint: %s\n", res.UploadedFingerprint)
	if res.OriginalFingerprint != "" {
		fmt.Printf("  original fingerprint: %s\n", res.OriginalFingerprint)
	}
	if res.SubjectID != "" {
		fmt.Printf("  subject: %s\n", res.SubjectID)
	}
	if res.LooksScanned {
		fmt.Printf("  looks scanned: yes (content match %d%%)\n", res.MatchPercent)
	}
	for _, w := range res.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	return nil
}

// ── fingerprint ──────────────────────────────────────────────────────────────

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint <document.pdf>",
	Short: "Compute a document's fingerprints locally",
	Long: `Fingerprint prints the exact byte fingerprint, the image-content
fingerprint, and the scan classification of a PDF without contacting any
service.`,
	Args: cobra.ExactArgs(1),
	RunE: runFingerprint,
}

// ── anchor ───────────────────────────────────────────────────────────────────

var (
	anchorPatientName string
	anchorDoctorName  string
	anchorPatientID   string
	anchorDoctorID    string
	anchorItems       []string
	anchorOutFile     string
)

var anchorCmd = &cobra.Command{
	Use:   "anchor",
	Short: "Issue and anchor a new document",
	Long: `Anchor creates a subject on the verifier service, runs the two-phase
anchoring flow, and writes the anchored PDF:

  docproof anchor --patient "Ana Souza" --doctor "Dr. Carlos Lima" \
      --patient-id pat-1 --doctor-id doc-1 \
      --item "Amoxicillin 500mg" --out prescription.pdf`,
	RunE: runAnchor,
}

func init() {
	anchorCmd.Flags().StringVar(&anchorPatientName, "patient", "", "Patient display name (required)")
	anchorCmd.Flags().StringVar(&anchorDoctorName, "doctor", "", "Doctor display name (required)")
	anchorCmd.Flags().StringVar(&anchorPatientID, "patient-id", "", "Patient identifier (required, hashed before anchoring)")
	anchorCmd.Flags().StringVar(&anchorDoctorID, "doctor-id", "", "Doctor identifier (required, hashed before anchoring)")
	anchorCmd.Flags().StringArrayVar(&anchorItems, "item", nil, "Prescribed item, repeatable")
	anchorCmd.Flags().StringVar(&anchorOutFile, "out", "document.pdf", "Output path for the anchored PDF")
	anchorCmd.MarkFlagRequired("patient")    //nolint:errcheck
	anchorCmd.MarkFlagRequired("doctor")     //nolint:errcheck
	anchorCmd.MarkFlagRequired("patient-id") //nolint:errcheck
	anchorCmd.MarkFlagRequired("doctor-id")  //nolint:errcheck
}

func runAnchor(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	res, err := c.CreateAnchor(context.Background(), client.AnchorRequest{
		PatientName: anchorPatientName,
		DoctorName:  anchorDoctorName,
		PatientID:   anchorPatientID,
		DoctorID:    anchorDoctorID,
		ItemNames:   anchorItems,
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(anchorOutFile, res.Document, 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	fmt.Printf("subject:     %s\n", res.SubjectID)
	fmt.Printf("fingerprint: %s\n", res.StoredFingerprint)
	fmt.Printf("tx:          %s\n", res.Anchor.TxRef)
	if res.Finalized {
		fmt.Printf("final tx:    %s\n", res.Anchor.FinalTxRef)
	} else {
		fmt.Printf("warning:     %s\n", res.FinalizeWarning)
	}
	fmt.Printf("document:    %s\n", anchorOutFile)
	return nil
}

// ── ledger ───────────────────────────────────────────────────────────────────

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Ledger operations",
}

var ledgerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the service can reach its ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.LedgerStatus(context.Background()); err != nil {
			return err
		}
		fmt.Println("ledger: ok")
		return nil
	},
}

var ledgerLookupCmd = &cobra.Command{
	Use:   "lookup <fingerprint>",
	Short: "Look a fingerprint up on the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		proof, err := c.GetAnchor(context.Background(), args[0])
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(proof, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	ledgerCmd.AddCommand(ledgerStatusCmd)
	ledgerCmd.AddCommand(ledgerLookupCmd)
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the docproof version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("docproof", version)
	},
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// setup-bucket เตรียม buckets สองใบ:
// fast bucket อ่าน public ได้ (UI โหลดวิดีโอตรงจาก URL) ส่วน durable bucket private
func main() {
	godotenv.Load()

	endpoint := os.Getenv("S3_ENDPOINT")
	accessKey := os.Getenv("S3_ACCESS_KEY")
	secretKey := os.Getenv("S3_SECRET_KEY")
	fastBucket := getenv("S3_FAST_BUCKET", "veobatch-fast")
	durableBucket := getenv("S3_DURABLE_BUCKET", "veobatch-archive")
	useSSL := os.Getenv("S3_USE_SSL") == "true"
	region := getenv("S3_REGION", "auto")

	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("  Veobatch Bucket Setup")
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("\nEndpoint: %s\n", endpoint)
	fmt.Printf("Fast bucket: %s\n", fastBucket)
	fmt.Printf("Durable bucket: %s\n", durableBucket)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()

	for _, bucket := range []string{fastBucket, durableBucket} {
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			log.Fatalf("Failed to check bucket %s: %v", bucket, err)
		}
		if exists {
			fmt.Printf("\n✓ Bucket '%s' exists\n", bucket)
			continue
		}

		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			log.Fatalf("Failed to create bucket %s: %v", bucket, err)
		}
		fmt.Printf("\n✓ Bucket '%s' created\n", bucket)
	}

	// fast bucket เปิดอ่าน public - วิดีโอใน tier นี้อายุสั้นอยู่แล้ว
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Sid":       "PublicReadFastTier",
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    []string{"s3:GetObject"},
				"Resource":  []string{fmt.Sprintf("arn:aws:s3:::%s/*", fastBucket)},
			},
		},
	}

	policyJSON, _ := json.MarshalIndent(policy, "", "  ")

	fmt.Println("\n--- Setting fast bucket policy ---")
	fmt.Println(string(policyJSON))

	if err := client.SetBucketPolicy(ctx, fastBucket, string(policyJSON)); err != nil {
		log.Printf("Warning: failed to set policy: %v", err)
	} else {
		fmt.Println("\n✓ Fast bucket policy applied")
	}

	fmt.Println("\nDone.")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

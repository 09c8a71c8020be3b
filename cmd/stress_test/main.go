package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/order-saga/internal/adapter/client"
	"github.com/rl1809/order-saga/internal/adapter/storage"
	"github.com/rl1809/order-saga/internal/core/domain"
	"github.com/rl1809/order-saga/internal/logger"
)

const productName = "stress-test-item"

// Hammers a running catalog (stores.catalog: redis) with concurrent Reserve
// calls over gRPC and checks that exactly the seeded stock was handed out.
func main() {
	catalogTarget := flag.String("catalog", "localhost:50051", "catalog gRPC target")
	redisAddr := flag.String("redis", "localhost:6379", "redis backing the catalog")
	initialStock := flag.Int("stock", 20, "seeded quantity")
	totalRequests := flag.Int("requests", 50, "concurrent reservations")
	flag.Parse()

	zlog, err := logger.New("info", true)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()

	products := storage.NewRedisProductRepository(rdb)
	seed := domain.Product{Name: productName, Quantity: *initialStock, Price: decimal.NewFromInt(10)}
	if err := products.Save(ctx, seed); err != nil {
		zlog.Fatal("failed to seed stock", zap.Error(err))
	}

	catalog, conn, err := client.DialCatalog(*catalogTarget, 5*time.Second)
	if err != nil {
		zlog.Fatal("failed to dial catalog", zap.Error(err))
	}
	defer conn.Close()

	var successCount, outOfStock, failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := catalog.Reserve(ctx, productName)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrNotFound):
				// out of stock travels as a 400 envelope
				outOfStock.Add(1)
			default:
				failCount.Add(1)
				zlog.Warn("reserve failed", zap.Error(err))
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	rejected := outOfStock.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Reserved:         %d\n", success)
	fmt.Printf("Out of stock:     %d\n", rejected)
	fmt.Printf("Transport errors: %d\n", failCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	want := min(*initialStock, *totalRequests)
	if int(success) == want {
		fmt.Printf("PASS: exactly %d reservations succeeded\n", want)
	} else {
		fmt.Printf("FAIL: expected %d reservations, got %d\n", want, success)
	}

	p, err := products.Get(ctx, productName)
	if err != nil {
		zlog.Fatal("failed to read final stock", zap.Error(err))
	}
	fmt.Printf("Final Stock: %d\n", p.Quantity)

	if p.Quantity == *initialStock-want {
		fmt.Println("PASS: stock never went negative")
	} else {
		fmt.Printf("FAIL: expected stock %d, got %d\n", *initialStock-want, p.Quantity)
	}
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rl1809/order-saga/internal/adapter/client"
	"github.com/rl1809/order-saga/internal/adapter/handler"
	"github.com/rl1809/order-saga/internal/adapter/messaging"
	"github.com/rl1809/order-saga/internal/adapter/rpc"
	"github.com/rl1809/order-saga/internal/adapter/storage"
	"github.com/rl1809/order-saga/internal/config"
	"github.com/rl1809/order-saga/internal/core/domain"
	"github.com/rl1809/order-saga/internal/core/service"
	"github.com/rl1809/order-saga/internal/port"
	"github.com/rl1809/order-saga/internal/tracing"
)

type subscription struct {
	channel string
	handler port.Handler
}

// app holds every long-lived resource of the process. Only the roles listed
// in the config are wired.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db  *sql.DB
	rdb *redis.Client

	publisher   port.Publisher
	subscriber  port.Subscriber
	idempotency port.IdempotencyStore
	memBus      *messaging.MemoryBus
	kafkaPub    *messaging.KafkaPublisher
	kafkaSub    *messaging.KafkaSubscriber

	httpServers []*http.Server
	grpcServer  *grpc.Server
	catalogConn *grpc.ClientConn
	subs        []subscription

	catalogSvc *service.CatalogService
	accountSvc *service.AccountService
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if err := a.openStores(ctx); err != nil {
		a.close()
		return nil, err
	}
	a.openMessaging()

	steps := []struct {
		role string
		wire func(context.Context) error
	}{
		{config.RoleCatalog, a.wireCatalog},
		{config.RoleAccount, a.wireAccount},
		{config.RoleOrder, a.wireOrder},
	}
	for _, step := range steps {
		if !cfg.HasRole(step.role) {
			continue
		}
		if err := step.wire(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("wire %s: %w", step.role, err)
		}
	}
	return a, nil
}

func (a *app) openStores(ctx context.Context) error {
	if a.cfg.UsesMySQL() {
		db, err := sql.Open("mysql", a.cfg.MySQL.DSN)
		if err != nil {
			return fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(a.cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(a.cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(a.cfg.MySQL.ConnMaxLifetime)
		a.db = db

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping mysql: %w", err)
		}
		if err := storage.MigrateMySQL(ctx, db); err != nil {
			return err
		}
		a.logger.Info("connected to mysql")
	}

	if a.cfg.UsesRedis() {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
			PoolSize: a.cfg.Redis.PoolSize,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		a.logger.Info("connected to redis", zap.String("addr", a.cfg.Redis.Addr))
	}
	return nil
}

func (a *app) openMessaging() {
	switch a.cfg.Messaging.Driver {
	case config.DriverKafka:
		kc := messaging.KafkaConfig{
			Brokers:      a.cfg.Kafka.Brokers,
			TopicPrefix:  a.cfg.Kafka.TopicPrefix,
			GroupID:      a.cfg.Kafka.GroupID,
			BatchTimeout: a.cfg.Kafka.BatchTimeout,
		}
		a.kafkaPub = messaging.NewKafkaPublisher(kc)
		a.kafkaSub = messaging.NewKafkaSubscriber(kc, a.logger)
		a.publisher, a.subscriber = a.kafkaPub, a.kafkaSub
	default:
		a.memBus = messaging.NewMemoryBus(a.cfg.Messaging.Buffer, a.logger)
		a.publisher, a.subscriber = a.memBus, a.memBus
	}

	if a.cfg.Messaging.Idempotency == config.DriverRedis {
		a.idempotency = storage.NewRedisIdempotencyStore(a.rdb)
	} else {
		a.idempotency = storage.NewMemoryIdempotencyStore()
	}
}

func (a *app) wireCatalog(ctx context.Context) error {
	var products port.ProductRepository
	switch a.cfg.Stores.Catalog {
	case config.DriverRedis:
		products = storage.NewRedisProductRepository(a.rdb)
	case config.DriverMySQL:
		products = storage.NewMySQLProductRepository(a.db)
	default:
		products = storage.NewMemoryProductRepository()
	}

	if err := a.seedProducts(ctx, products); err != nil {
		return err
	}

	a.catalogSvc = service.NewCatalogService(products, a.logger.Named("catalog"))

	a.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(tracing.UnaryServerInterceptor()))
	rpc.RegisterCatalogServer(a.grpcServer, handler.NewCatalogGRPCHandler(a.catalogSvc, a.logger.Named("catalog.grpc")))

	router := handler.NewRouter()
	handler.NewCatalogHTTPHandler(a.catalogSvc, a.logger.Named("catalog.http")).Register(router)
	a.addHTTPServer(a.cfg.HTTP.CatalogAddr, router)

	a.subscribe(domain.ChannelStockRelease, a.catalogSvc.HandleStockRelease)
	return nil
}

func (a *app) wireAccount(ctx context.Context) error {
	var accounts port.AccountRepository
	switch a.cfg.Stores.Account {
	case config.DriverMySQL:
		gdb, err := gorm.Open(gormmysql.New(gormmysql.Config{Conn: a.db}), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return fmt.Errorf("open gorm: %w", err)
		}
		repo := storage.NewGormAccountRepository(gdb)
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate accounts: %w", err)
		}
		accounts = repo
	default:
		accounts = storage.NewMemoryAccountRepository()
	}

	if err := a.seedAccounts(ctx, accounts); err != nil {
		return err
	}

	a.accountSvc = service.NewAccountService(accounts, a.publisher, a.logger.Named("account"))

	router := handler.NewRouter()
	handler.NewAccountHTTPHandler(a.accountSvc, a.logger.Named("account.http")).Register(router)
	a.addHTTPServer(a.cfg.HTTP.AccountAddr, router)

	a.subscribe(domain.ChannelOrderPending, a.accountSvc.HandleOrderPending)
	a.subscribe(domain.ChannelOrderRemoved, a.accountSvc.HandleOrderRemoved)
	return nil
}

func (a *app) wireOrder(_ context.Context) error {
	var orders port.OrderRepository
	if a.cfg.Stores.Order == config.DriverMySQL {
		orders = storage.NewMySQLOrderRepository(a.db)
	} else {
		orders = storage.NewMemoryOrderRepository()
	}

	var catalog port.CatalogClient
	if a.cfg.Clients.InProcess && a.catalogSvc != nil {
		catalog = a.catalogSvc
	} else {
		c, conn, err := client.DialCatalog(a.cfg.Clients.CatalogTarget, a.cfg.Clients.Timeout)
		if err != nil {
			return err
		}
		a.catalogConn = conn
		catalog = c
	}

	var accounts port.AccountClient
	if a.cfg.Clients.InProcess && a.accountSvc != nil {
		accounts = a.accountSvc
	} else {
		accounts = client.NewAccountClient(a.cfg.Clients.AccountURL, a.cfg.Clients.Timeout)
	}

	logger := a.logger.Named("order")
	orderSvc := service.NewOrderService(orders, catalog, accounts, a.publisher,
		service.OrderOptions{ReleaseOnRejectedUser: a.cfg.Saga.ReleaseOnRejectedUser}, logger)
	paymentSvc := service.NewPaymentService(accounts, orderSvc, a.logger.Named("payment"))

	router := handler.NewRouter()
	handler.NewOrderHTTPHandler(orderSvc, paymentSvc, a.logger.Named("order.http")).Register(router)
	a.addHTTPServer(a.cfg.HTTP.OrderAddr, router)

	a.subscribe(domain.ChannelOrderConfirmed, orderSvc.HandleOrderConfirmed)
	return nil
}

// seedProducts writes configured products that the store does not know yet.
func (a *app) seedProducts(ctx context.Context, products port.ProductRepository) error {
	for _, sp := range a.cfg.Seed.Products {
		if _, err := products.Get(ctx, sp.Name); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("seed product %s: %w", sp.Name, err)
		}

		price, err := decimal.NewFromString(sp.Price)
		if err != nil {
			return fmt.Errorf("seed product %s: bad price %q: %w", sp.Name, sp.Price, err)
		}
		if err := products.Save(ctx, domain.Product{Name: sp.Name, Quantity: sp.Quantity, Price: price}); err != nil {
			return fmt.Errorf("seed product %s: %w", sp.Name, err)
		}
		a.logger.Info("seeded product", zap.String("product", sp.Name), zap.Int("quantity", sp.Quantity))
	}
	return nil
}

func (a *app) seedAccounts(ctx context.Context, accounts port.AccountRepository) error {
	for _, sa := range a.cfg.Seed.Accounts {
		if _, err := accounts.Get(ctx, sa.UserName); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("seed account %s: %w", sa.UserName, err)
		}

		if err := accounts.Save(ctx, domain.Account{UserName: sa.UserName, Products: sa.Products}); err != nil {
			return fmt.Errorf("seed account %s: %w", sa.UserName, err)
		}
		a.logger.Info("seeded account", zap.String("user", sa.UserName))
	}
	return nil
}

func (a *app) addHTTPServer(addr string, router *mux.Router) {
	a.httpServers = append(a.httpServers, &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	})
}

func (a *app) subscribe(channel string, handler port.Handler) {
	a.subs = append(a.subs, subscription{channel: channel, handler: handler})
}

// run serves until ctx is cancelled or a server fails, then shuts the
// servers down gracefully.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, s := range a.subs {
		if err := messaging.SubscribeOnce(gctx, a.subscriber, a.idempotency, s.channel, a.logger, s.handler); err != nil {
			return err
		}
	}

	for _, srv := range a.httpServers {
		g.Go(func() error {
			a.logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	if a.grpcServer != nil {
		lis, err := net.Listen("tcp", a.cfg.GRPC.CatalogAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		g.Go(func() error {
			a.logger.Info("gRPC server listening", zap.String("addr", a.cfg.GRPC.CatalogAddr))
			if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		for _, srv := range a.httpServers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("HTTP shutdown failed", zap.String("addr", srv.Addr), zap.Error(err))
			}
		}
		a.logger.Info("HTTP servers stopped")

		if a.grpcServer != nil {
			a.grpcServer.GracefulStop()
			a.logger.Info("gRPC server stopped")
		}
		return nil
	})

	return g.Wait()
}

// close releases resources in reverse order of acquisition. Safe to call on
// a partially built app.
func (a *app) close() {
	if a.catalogConn != nil {
		a.catalogConn.Close()
	}
	if a.memBus != nil {
		a.memBus.Close()
	}
	if a.kafkaSub != nil {
		a.kafkaSub.Wait()
	}
	if a.kafkaPub != nil {
		if err := a.kafkaPub.Close(); err != nil {
			a.logger.Warn("kafka writer close failed", zap.Error(err))
		}
	}
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	a.logger.Info("connections closed")
}

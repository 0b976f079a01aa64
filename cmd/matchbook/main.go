package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"matchbook/internal/api"
	"matchbook/internal/engine"
	"matchbook/internal/feed"
	"matchbook/internal/orderbook"
	"matchbook/internal/sim"
	"matchbook/internal/store"
)

func main() {
	// .env is optional; flags and real env win
	_ = godotenv.Load()

	port := flag.String("port", "8088", "reporting server port")
	dbPath := flag.String("db", "matchbook.db", "SQLite trade journal path")
	corsOrigins := flag.String("cors", "", "comma-separated allowed CORS origins (empty = allow all for dev)")
	symbols := flag.String("symbols", "AAPL,GOOGL,MSFT,AMZN,TSLA", "comma-separated symbols to simulate")
	workers := flag.Int("workers", 4, "concurrent order-flow workers")
	orders := flag.Int("orders", 100, "total simulated orders")
	seed := flag.Int64("seed", 0, "simulation seed (0 = from clock)")
	kafkaBrokers := flag.String("kafka-brokers", os.Getenv("KAFKA_BROKERS"), "comma-separated Kafka brokers (empty = disabled)")
	kafkaTopic := flag.String("kafka-topic", "trades", "Kafka topic for executed trades")
	flag.Parse()

	// Trade journal
	st, err := store.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	eng := engine.New()

	// Optional Kafka trade feed
	var publisher *feed.Publisher
	if *kafkaBrokers != "" {
		publisher = feed.NewPublisher(strings.Split(*kafkaBrokers, ","), *kafkaTopic)
		log.Printf("Publishing trades to Kafka topic %q via %s", *kafkaTopic, *kafkaBrokers)
	}

	// Reporting server
	server := api.NewServer(eng, st)
	if *corsOrigins != "" {
		origins := strings.Split(*corsOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		server.SetCORSOrigins(origins)
		log.Printf("CORS restricted to: %v", origins)
	}

	// All trade consumers hang off the engine's stream, outside book locks
	eng.OnTrade(func(trade orderbook.Trade) {
		log.Printf("TRADE %s: %d @ %.2f (buy #%d / sell #%d)",
			trade.Symbol, trade.Quantity, float64(trade.Price)/100, trade.BuyOrderID, trade.SellOrderID)

		if err := st.RecordTrade(trade); err != nil {
			log.Printf("Failed to journal trade %s: %v", trade.ID, err)
		}
		if publisher != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := publisher.Publish(ctx, trade); err != nil {
				log.Printf("Failed to publish trade %s: %v", trade.ID, err)
			}
			cancel()
		}
		server.HandleTrade(trade)
	})

	addr := ":" + *port
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}
	go func() {
		log.Printf("Reporting server on http://localhost%s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Order-flow simulation
	cfg := sim.DefaultConfig()
	cfg.Symbols = strings.Split(*symbols, ",")
	cfg.Workers = *workers
	cfg.OrderLimit = *orders
	cfg.Seed = *seed

	simulator := sim.New(eng, cfg)
	simulator.Start()
	log.Printf("Simulating %d orders across %v with %d workers", *orders, cfg.Symbols, *workers)

	simDone := make(chan struct{})
	go func() {
		simulator.Wait()
		close(simDone)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-simDone:
		log.Println("Order simulation complete")
		log.Print(simulator.Summary())
		if count, err := st.TradeCount(); err == nil {
			log.Printf("Journaled %d trades, %d orders still resting", count, eng.OpenOrders())
		}
		// Keep serving snapshots until interrupted
		<-quit
	case <-quit:
		simulator.Stop()
		simulator.Wait()
		log.Print(simulator.Summary())
	}

	log.Println("Shutting down...")

	server.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Printf("Kafka close error: %v", err)
		}
	}

	if err := st.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
}

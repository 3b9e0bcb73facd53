package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"gastrochef/internal/protocol"
)

// Playtest bot: registers an account, connects to the order stream and tries
// to serve every order by buying the ingredients first. Orders for dishes the
// bot has not learned are left to time out.
func main() {
	var (
		apiURL   = flag.String("api", "http://localhost:8080", "http api base url")
		wsURL    = flag.String("ws", "ws://localhost:8080/v1/ws", "ws url")
		email    = flag.String("email", "bot@example.com", "account email")
		password = flag.String("password", "botsecret", "account password")
		name     = flag.String("name", "Bot Bistro", "restaurant name")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	token, err := login(*apiURL, *name, *email, *password)
	if err != nil {
		logger.Fatalf("login: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*wsURL+"?token="+token, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeNewOrder:
			var order protocol.NewOrderMsg
			if err := json.Unmarshal(msg, &order); err != nil {
				continue
			}
			logger.Printf("order #%d: %s (%d)", order.ID, order.Recipe, order.SalePrice)
			if stockUp(*apiURL, token, order.RecipeID, logger) {
				_ = conn.WriteJSON(map[string]string{"type": protocol.TypeServeOrder})
			}

		case protocol.TypeOrderSuccess:
			var ok protocol.OrderSuccessMsg
			if err := json.Unmarshal(msg, &ok); err != nil {
				continue
			}
			logger.Printf("served: +%d treasury=%d satisfaction=%d", ok.Amount, ok.Treasury, ok.Satisfaction)

		case protocol.TypeOrderFailed:
			var fail protocol.OrderFailedMsg
			if err := json.Unmarshal(msg, &fail); err != nil {
				continue
			}
			logger.Printf("failed: %s", fail.Message)

		case protocol.TypeGameOver:
			logger.Printf("game over; restarting fresh")
		}
	}
}

func login(apiURL, name, email, password string) (string, error) {
	// Registration conflict just means the account already exists.
	_, _ = postJSON(apiURL+"/api/auth/register", "", map[string]string{
		"restaurantName": name, "email": email, "password": password,
	})
	out, err := postJSON(apiURL+"/api/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	if err != nil {
		return "", err
	}
	token, _ := out["token"].(string)
	if token == "" {
		return "", fmt.Errorf("no token in login response")
	}
	return token, nil
}

// stockUp buys one of each ingredient the recipe needs. Returns false when
// the recipe is not in the learned list, since its ingredients are unknown.
func stockUp(apiURL, token, recipeID string, logger *log.Logger) bool {
	save, err := getJSON(apiURL+"/api/save", token)
	if err != nil {
		logger.Printf("save: %v", err)
		return false
	}
	learned, _ := save["learnedRecipes"].([]any)
	for _, entry := range learned {
		rec, _ := entry.(map[string]any)
		if rec["id"] != recipeID {
			continue
		}
		reqs, _ := rec["ingredients"].([]any)
		for _, raw := range reqs {
			req, _ := raw.(map[string]any)
			qty, _ := req["quantity"].(float64)
			_, err := postJSON(apiURL+"/api/economy/buy", token, map[string]any{
				"ingredientId": req["ingredientId"], "quantity": int(qty),
			})
			if err != nil {
				logger.Printf("buy %v: %v", req["ingredientId"], err)
				return false
			}
		}
		return true
	}
	return false
}

func postJSON(url, token string, body any) (map[string]any, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return doRequest(req)
}

func getJSON(url, token string) (map[string]any, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return doRequest(req)
}

func doRequest(req *http.Request) (map[string]any, error) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		msg, _ := out["message"].(string)
		return out, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	return out, nil
}

package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"

	"xcp-lens/pkg/parser"
	"xcp-lens/pkg/types"

	"github.com/btcsuite/btcd/wire"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Get port from environment or default to 3000
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	config := types.DefaultConfig(types.Network(os.Getenv("NETWORK")))
	config.RPCAddress = os.Getenv("BITCOIN_RPC")
	config.RPCUser = os.Getenv("BITCOIN_RPC_USER")
	config.RPCPassword = os.Getenv("BITCOIN_RPC_PASSWORD")

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	r.POST("/api/tx", func(c *gin.Context) { handleTx(c, &config) })
	r.POST("/api/block", func(c *gin.Context) { handleBlock(c, &config) })

	fmt.Printf("http://127.0.0.1:%s\n", port)
	r.Run(":" + port)
}

type txRequest struct {
	RawTx  string `json:"raw_tx" binding:"required"`
	Height uint32 `json:"height"`
}

type blockRequest struct {
	RawBlock string `json:"raw_block" binding:"required"`
	Height   uint32 `json:"height"`
	Entries  bool   `json:"entries"`
}

type entryOutput struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func handleTx(c *gin.Context, config *types.Config) {
	var req txRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"ok": false, "error": "Failed to parse JSON"})
		return
	}

	rawTx, err := hex.DecodeString(req.RawTx)
	if err != nil {
		c.JSON(400, gin.H{"ok": false, "error": "Invalid raw_tx hex"})
		return
	}
	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		c.JSON(400, gin.H{"ok": false, "error": fmt.Sprintf("Failed to deserialize transaction: %v", err)})
		return
	}

	c.JSON(200, parser.ParseTransaction(tx, config, req.Height, true))
}

func handleBlock(c *gin.Context, config *types.Config) {
	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"ok": false, "error": "Failed to parse JSON"})
		return
	}

	rawBlock, err := hex.DecodeString(req.RawBlock)
	if err != nil {
		c.JSON(400, gin.H{"ok": false, "error": "Invalid raw_block hex"})
		return
	}
	block := &wire.MsgBlock{}
	if err := block.Deserialize(bytes.NewReader(rawBlock)); err != nil {
		c.JSON(400, gin.H{"ok": false, "error": fmt.Sprintf("Failed to deserialize block: %v", err)})
		return
	}

	if req.Entries {
		entries := parser.GetEntries(block, config.Mode, req.Height)
		out := make([]entryOutput, 0, len(entries))
		for _, entry := range entries {
			key, value := entry.Entry()
			out = append(out, entryOutput{Key: hex.EncodeToString(key), Value: hex.EncodeToString(value)})
		}
		c.JSON(200, out)
		return
	}

	c.JSON(200, parser.ParseBlock(block, config, req.Height, true))
}

/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package main

import (
	"context"
	"flag"
	"fmt"

	"brokerdesk-go/internal/api"
	"brokerdesk-go/internal/common"
	"brokerdesk-go/internal/config"
	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	nameFlag := flag.String("name", "", "User's full name (required)")
	emailFlag := flag.String("email", "", "User's email address (required)")
	passwordFlag := flag.String("password", "", "Initial password, at least 6 characters (required)")
	adminFlag := flag.Bool("admin", false, "Grant the admin role")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	_, loggerCleanup := common.InitializeLogger(cfg.Log)
	defer loggerCleanup()

	if *nameFlag == "" || *emailFlag == "" || *passwordFlag == "" {
		zap.L().Fatal("Flags --name, --email and --password are required")
	}

	st, err := common.InitializeStore(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to open store", zap.Error(err))
	}
	defer st.Close()

	svc := api.NewBrokerService(api.Deps{Store: st})

	zap.L().Info("Starting user creation process",
		zap.String("name", *nameFlag),
		zap.String("email", *emailFlag),
		zap.Bool("admin", *adminFlag))

	res, err := svc.Register(ctx, api.RegisterRequest{
		Email:    *emailFlag,
		Password: *passwordFlag,
		FullName: *nameFlag,
	})
	if err != nil {
		zap.L().Fatal("Failed to create user", zap.String("reason", res.Message), zap.Error(err))
	}
	user := res.Record

	if *adminFlag {
		role := models.RoleAdmin
		user, err = st.UpdateUser(ctx, user.Id, store.UserPatch{Role: &role})
		if err != nil {
			zap.L().Fatal("User created but role change failed", zap.String("user_id", res.Record.Id), zap.Error(err))
		}
	}

	common.PrintHeader("USER CREATED", common.DefaultWidth)
	fmt.Printf("ID:    %s\n", user.Id)
	fmt.Printf("Name:  %s\n", user.FullName)
	fmt.Printf("Email: %s\n", user.Email)
	fmt.Printf("Role:  %s\n", user.Role)
	fmt.Printf("KYC:   %s\n", user.KycStatus)
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	zap.L().Info("User created successfully", zap.String("id", user.Id))
}

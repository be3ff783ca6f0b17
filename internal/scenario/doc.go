// Package scenario は統合シナリオ実行機能を提供する。
//
// シナリオエンジンはセマフォ、メッセージ交換、ワーカープール、
// ブロードキャスタを一組ずつ作成し、Clientで負荷をかけ、必要なら
// ChaosMonkeyで呼び出しを妨害する。実行時間が経過すると全プリミティブを
// 並行してシャットダウンし、それぞれが終了したかを報告する。
//
// # 機能
//
// - シナリオ定義と実行
// - 定義済みプリセットシナリオ
// - 実行結果のレポート生成（呼び出し結果の内訳と終了結果）
//
// # プリセットシナリオ
//
// - basic: カオスなしの基本負荷テスト
// - contention: 許可数を大きく上回る参加者による競合テスト
// - cancellation: 実行中の呼び出しのキャンセル注入テスト
// - stress: 高負荷ストレステスト
// - quick: 短時間の動作確認
//
// # 使用例
//
//	config := scenario.CancellationScenario()
//	engine := scenario.New(config)
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Report())
package scenario

// Package media реализует аудио конвейер движка звонков: исходящий
// тракт захвата и входящий тракт jitter buffer -> merge -> playout.
//
// # Архитектура
//
// Конвейер одного звонка обслуживается одной горутиной диспетчеризации
// событий. Кадры сигнального канала, срабатывания таймеров и колбэки
// устройства вывода превращаются в типизированные события и
// обрабатываются строго последовательно - два обработчика одного
// звонка никогда не выполняются одновременно.
//
//   - CapturePath - кадры микрофона фиксированной длительности,
//     подмена тишиной при mute, монотонный seq
//   - jitter buffer - FIFO очередь пришедших кадров; слияние по размеру
//     партии B или по flush таймеру с минимальным порогом
//   - segment builder - склейка PCM, линейный fade на границах,
//     WAV контейнер, scratch файл
//   - playout scheduler - явный автомат idle/playing, ограниченная
//     очередь сегментов, опциональный crossfade между слотами вывода
//
// # Политика слияния
//
// Слияние по размеру: как только в очереди накопилось B кадров
// (по умолчанию 2), старейшие B склеиваются в сегмент. Слияние по
// времени: при постановке кадра взводится flush таймер (80ms); по
// срабатыванию партия сливается, если достигнут минимум - 1 кадр до
// самого первого старта воспроизведения, 2 после. Если минимум не
// достигнут, таймер перевзводится. Это основной компромисс между
// задержкой и гладкостью потока.
//
// # Владение ресурсами
//
// Очередь сегментов и текущий сегмент принадлежат только планировщику
// воспроизведения; jitter buffer - только шагу слияния. Файл сегмента
// удаляется сразу после проигрывания или вытеснения. Teardown
// идемпотентен: повторный вызов и вызов без захваченных ресурсов
// безопасны.
package media

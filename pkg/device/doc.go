// Package device содержит реализации внешних устройств аудио тракта:
// захват микрофона и воспроизведение через miniaudio (malgo) и
// scratch хранилище во временном каталоге.
//
// Реализации удовлетворяют интерфейсам pkg/media (CaptureDevice,
// OutputDevice, ScratchStore); движок получает их инжекцией и может
// быть протестирован на фейковых устройствах без звуковой подсистемы.
package device
